package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"accounter.org/internal/accounting"
)

var validateCmd = &cobra.Command{
	Use:   "validate CHARGE_ID...",
	Short: "Diff stored ledgers against a fresh generation",
	Long: `Regenerate each charge's ledger in memory and compare it with the stored
entries. Exits non-zero when any charge fails or differs.

Example:
  ledgerctl validate 6f4c6a3e-... --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

type validateReport struct {
	ChargeID string `json:"charge_id"`
	Clean    bool   `json:"clean"`
	Locked   bool   `json:"locked"`
	Matches  int    `json:"matches"`
	Diffs    int    `json:"diffs"`
	Deleted  int    `json:"deleted"`
	New      int    `json:"new"`
	Error    string `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *accounting.Service) error {
		reports := make([]validateReport, 0, len(args))
		failed := 0
		for _, id := range args {
			rep := validateReport{ChargeID: id}
			v, err := svc.ValidateLedger(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rep.Error = err.Error()
				failed++
				reports = append(reports, rep)
				continue
			}
			rep.Clean = v.Diff.IsClean()
			rep.Locked = v.Locked
			rep.Matches = len(v.Diff.Matches)
			rep.Diffs = len(v.Diff.Diffs)
			rep.Deleted = len(v.Diff.Deleted)
			rep.New = len(v.Diff.New)
			if !rep.Clean {
				failed++
			}
			reports = append(reports, rep)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if err := printJSON(out, reports); err != nil {
				return err
			}
		} else {
			for _, r := range reports {
				fmt.Fprintln(out, r.line())
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d charges not clean", failed, len(args))
		}
		return nil
	})
}

func (r validateReport) line() string {
	var b strings.Builder
	b.WriteString(r.ChargeID)
	b.WriteString(": ")
	switch {
	case r.Error != "":
		b.WriteString("error: ")
		b.WriteString(r.Error)
	case r.Clean:
		fmt.Fprintf(&b, "clean (%d matching)", r.Matches)
	default:
		fmt.Fprintf(&b, "differs (%d matching, %d changed, %d deleted, %d new)", r.Matches, r.Diffs, r.Deleted, r.New)
	}
	if r.Locked {
		b.WriteString(" [locked]")
	}
	return b.String()
}
