package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/keys"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision the encryption key for the local cache",
	Long: `init performs the one-time setup:
  1. generates a random encryption key for the local cache
  2. wraps it under your passphrase and stores the keyfile
  3. checks the connection to the Redmine server

The passphrase only protects the keyfile at rest. Without it the cached
data cannot be opened; there is no recovery.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keys.Exists(cfg.KeyPath) {
			fmt.Println("Already initialized. Use 'spender wipe' to start over.")
			return nil
		}

		fmt.Print("Choose a passphrase: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		fmt.Print("Repeat the passphrase: ")
		confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}

		if string(pass) != string(confirm) {
			return fmt.Errorf("passphrases do not match")
		}
		if len(pass) < 8 {
			return fmt.Errorf("passphrase must be at least 8 characters")
		}

		if _, err := keys.Provision(cfg.KeyPath, string(pass)); err != nil {
			return fmt.Errorf("failed to provision key: %w", err)
		}
		color.Green("Keyfile written to %s", cfg.KeyPath)

		if cfg.RedmineURL == "" || cfg.APIKey == "" {
			color.Yellow("REDMINE_URL / REDMINE_API_KEY not configured yet; set them before refreshing.")
			return nil
		}

		fmt.Println("Checking server connection...")
		client := redmine.NewClient(cfg.RedmineURL, cfg.APIKey, log)
		account, err := client.MyAccount(cmd.Context())
		if err != nil {
			color.Yellow("Warning: could not reach %s: %v", cfg.RedmineURL, err)
			return nil
		}
		color.Green("Connected as %s %s (%s)", account.Firstname, account.Lastname, account.Login)
		fmt.Println("Run 'spender refresh' to fill the cache.")
		return nil
	},
}
