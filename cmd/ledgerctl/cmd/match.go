package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"accounter.org/internal/accounting"
	"accounter.org/internal/matching"
)

var (
	matchMin   float64
	matchLimit int
)

var matchCmd = &cobra.Command{
	Use:       "match (transaction|document) ID",
	Short:     "Propose match candidates for a transaction or a document",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"transaction", "document"},
	RunE:      runMatch,
}

func init() {
	matchCmd.Flags().Float64Var(&matchMin, "min", 0, "minimum overall confidence")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 10, "maximum candidates to print")
}

func runMatch(cmd *cobra.Command, args []string) error {
	kind, id := args[0], args[1]
	if kind != "transaction" && kind != "document" {
		return fmt.Errorf("unknown anchor kind %q: want transaction or document", kind)
	}
	return withService(cmd, func(ctx context.Context, svc *accounting.Service) error {
		var (
			cands []matching.MatchCandidate
			err   error
		)
		if kind == "transaction" {
			cands, err = svc.MatchTransaction(ctx, id)
		} else {
			cands, err = svc.MatchDocument(ctx, id)
		}
		if err != nil {
			return err
		}
		if matchMin > 0 {
			cands = matching.FilterAbove(cands, matchMin)
		}
		if matchLimit > 0 && len(cands) > matchLimit {
			cands = cands[:matchLimit]
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if cands == nil {
				cands = []matching.MatchCandidate{}
			}
			return printJSON(out, cands)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TRANSACTION\tDOCUMENT\tOVERALL\tAMOUNT\tCURRENCY\tBUSINESS\tDATE\tDAYS")
		for _, c := range cands {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\t%d\n",
				c.TransactionID, c.DocumentID, c.Overall,
				score(c.Confidence.Amount), score(c.Confidence.Currency), score(c.Confidence.Business), score(c.Confidence.Date),
				c.DateDistanceDays)
		}
		return tw.Flush()
	})
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
