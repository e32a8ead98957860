package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"accounter.org/internal/accounting"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate CHARGE_ID",
	Short: "Rebuild and persist a charge's ledger (refused for locked charges)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *accounting.Service) error {
			entries, err := svc.RegenerateLedger(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, entries)
			}
			fmt.Fprintf(out, "%s: %d entries written\n", args[0], len(entries))
			return nil
		})
	},
}
