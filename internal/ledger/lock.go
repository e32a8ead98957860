package ledger

import (
	"fmt"
	"time"

	"accounter.org/internal/finance"
)

// ChargeDates collects every date that anchors a charge in time: ledger value and
// invoice dates, transaction event dates plus the debit timestamp (or, failing that,
// the debit date), and document dates. All are yyyy-MM-dd.
func ChargeDates(txns []finance.Transaction, docs []finance.Document, entries []LedgerEntry) []string {
	var out []string
	for _, e := range entries {
		out = appendDate(out, e.ValueDate)
		out = appendDate(out, e.InvoiceDate)
	}
	for _, tx := range txns {
		out = appendDate(out, tx.EventDate)
		switch {
		case tx.DebitTimestamp != nil:
			out = appendDate(out, *tx.DebitTimestamp)
		case tx.DebitDate != nil:
			out = appendDate(out, *tx.DebitDate)
		}
	}
	for _, d := range docs {
		out = appendDate(out, d.Date)
	}
	return out
}

func appendDate(dates []string, t time.Time) []string {
	if t.IsZero() {
		return dates
	}
	return append(dates, finance.FormatDate(t))
}

// IsChargeLocked reports whether a charge with the given dates is frozen by lockDate.
// An empty lockDate never locks; a charge without dates is never locked. Dates compare
// lexicographically, which preserves order for yyyy-MM-dd.
func IsChargeLocked(dates []string, lockDate string) bool {
	if lockDate == "" || len(dates) == 0 {
		return false
	}
	minDate := dates[0]
	for _, d := range dates[1:] {
		if d < minDate {
			minDate = d
		}
	}
	return lockDate >= minDate
}

// ValidateLockDate checks that s is empty or a yyyy-MM-dd date.
func ValidateLockDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := finance.ParseDate(s); err != nil {
		return fmt.Errorf("invalid ledger lock date %q: want yyyy-MM-dd", s)
	}
	return nil
}
