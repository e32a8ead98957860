// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"accounter.org/internal/accounting"
	"accounter.org/internal/audit"
	"accounter.org/internal/config"
	"accounter.org/internal/obs"
	"accounter.org/internal/store/pg"
)

var (
	envFile  string
	logLevel string
	asJSON   bool
	actor    string
)

// serviceFactory opens the accounting service; tests swap it for an in-memory one.
var serviceFactory = openService

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Inspect and maintain generated ledgers",
	Long: `ledgerctl runs the accounting core against the configured database.

Example:
  ledgerctl validate 6f4c6a3e-... 0b7b1a59-...
  ledgerctl lock 6f4c6a3e-...
  ledgerctl match transaction 9a1d2c77-... --min 0.8`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		obs.SetOutput(os.Stderr, logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", os.Getenv("USER"), "actor recorded in audit entries")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(regenerateCmd)
}

func openService(ctx context.Context) (*accounting.Service, func(), error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(true); err != nil {
		return nil, nil, err
	}
	st, err := pg.Open(cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	svc := accounting.FromConfig(cfg, st, st.Rates(cfg.LocalCurrency))
	return svc, func() { _ = st.Close() }, nil
}

// withService resolves the service and runs fn with an audit-aware context.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *accounting.Service) error) error {
	ctx := audit.WithActor(cmd.Context(), actor)
	svc, closeFn, err := serviceFactory(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
