package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"accounter.org/internal/accounting"
)

var lockCmd = &cobra.Command{
	Use:   "lock CHARGE_ID...",
	Short: "Report whether charges fall inside the ledger lock period",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *accounting.Service) error {
			states := make([]accounting.LockState, 0, len(args))
			for _, id := range args {
				st, err := svc.IsChargeLocked(ctx, id)
				if err != nil {
					return err
				}
				states = append(states, st)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, states)
			}
			for _, st := range states {
				status := "open"
				if st.Locked {
					status = "locked"
				}
				fmt.Fprintf(out, "%s: %s (lock date %q, %d dates)\n", st.ChargeID, status, st.LockDate, st.Dates)
			}
			return nil
		})
	},
}
