package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/keys"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

var wipeYes bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Erase the local cache and the encryption key",
	Long: `wipe deletes every cached record and removes the keyfile, returning
the client to its uninitialized state. Nothing on the Redmine server is
touched. This cannot be undone; the passphrase is not needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeYes {
			fmt.Print("This erases the local cache and key. Type 'yes' to continue: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		// The payloads are dropped wholesale, so the cache opens fine without
		// the key.
		if _, err := os.Stat(cfg.DataPath); err == nil {
			plain, err := store.Open(cfg.DataPath, cipher.Plain{}, log)
			if err != nil {
				return fmt.Errorf("failed to open cache for wiping: %w", err)
			}
			defer plain.Close()
			if err := plain.Wipe(cmd.Context()); err != nil {
				return err
			}
		}

		if err := keys.Remove(cfg.KeyPath); err != nil {
			return err
		}

		color.Green("Local cache and keyfile erased. Run 'spender init' to start over.")
		return nil
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeYes, "yes", false, "skip the confirmation prompt")
}
