package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"golang.org/x/term"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/app/spender"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/config"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/keys"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/utils/logger"
)

var (
	cfg        *config.Config
	log        *slog.Logger
	app        *spender.App
	st         *store.Store
	passphrase string
)

var rootCmd = &cobra.Command{
	Use:   "spender",
	Short: "Redmine Time Spender - offline-first time tracking client",
	Long: `Redmine Time Spender keeps an encrypted local snapshot of your Redmine
projects, issues and time entries so you can browse and log time without
waiting on the server. Mutations go to the server first; the cache follows.

Run 'spender init' once to provision the encryption key, then 'spender
refresh' to fill the cache.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	defer teardown()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		teardown()
		os.Exit(1)
	}
}

func teardown() {
	if st != nil {
		st.Close()
		st = nil
	}
}

// setupApp loads configuration for every command and opens the encrypted
// cache for the ones that need it. init and wipe manage the keyfile
// themselves and get only config and logger.
func setupApp(cmd *cobra.Command, _ []string) error {
	cfg = config.MustLoad()
	log = logger.New(cfg.Env)

	switch cmd.Name() {
	case "init", "wipe", "help", "completion":
		return nil
	}

	if cfg.RedmineURL == "" || cfg.APIKey == "" {
		return fmt.Errorf("REDMINE_URL and REDMINE_API_KEY must be set (see 'spender init')")
	}

	key, err := loadKey()
	if err != nil {
		return err
	}
	ciph, err := cipher.NewAESGCM(key)
	if err != nil {
		return err
	}

	st, err = store.Open(cfg.DataPath, ciph, log)
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}

	client := redmine.NewClient(cfg.RedmineURL, cfg.APIKey, log)
	app = spender.New(cfg, log, notify.New(), st, client)
	return nil
}

func loadKey() ([]byte, error) {
	pass, err := readPassphrase("Passphrase: ")
	if err != nil {
		return nil, err
	}
	key, err := keys.Load(cfg.KeyPath, pass)
	if errors.Is(err, keys.ErrNotProvisioned) {
		return nil, fmt.Errorf("no encryption key found, run 'spender init' first")
	}
	return key, err
}

// readPassphrase takes the passphrase from the --passphrase flag, the
// SPENDER_PASSPHRASE variable, or an interactive prompt, in that order.
func readPassphrase(prompt string) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if env := os.Getenv("SPENDER_PASSPHRASE"); env != "" {
		return env, nil
	}

	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(raw), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "passphrase unlocking the local cache (prompted when omitted)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(wipeCmd)
}
