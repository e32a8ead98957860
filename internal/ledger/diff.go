package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

// EntryPair is a persisted entry and the generated entry it corresponds to.
type EntryPair struct {
	Persisted LedgerEntry `json:"persisted"`
	Generated LedgerEntry `json:"generated"`
}

// EntryDiff is a persisted entry whose closest generated counterpart differs in Fields.
type EntryDiff struct {
	Persisted LedgerEntry `json:"persisted"`
	Generated LedgerEntry `json:"generated"`
	Fields    []string    `json:"fields"`
}

// LedgerDiff classifies persisted entries against a freshly generated set.
type LedgerDiff struct {
	Matches []EntryPair   `json:"matches"`
	Diffs   []EntryDiff   `json:"diffs"`
	Deleted []LedgerEntry `json:"deleted"`
	New     []LedgerEntry `json:"new"`
}

// IsClean reports whether persisted and generated sets agree completely.
func (d LedgerDiff) IsClean() bool {
	return len(d.Diffs) == 0 && len(d.Deleted) == 0 && len(d.New) == 0
}

// DiffLedger pairs persisted entries with generated ones. Ids are ignored when
// comparing because generated entries get fresh ids. Persisted entries are visited
// in id order; an exact match is preferred, then the closest generated entry in the
// same currency sharing an account. Whatever is left over is Deleted (persisted) or
// New (generated).
func DiffLedger(generated, persisted []LedgerEntry) LedgerDiff {
	stored := append([]LedgerEntry(nil), persisted...)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })

	used := make([]bool, len(generated))
	var out LedgerDiff
	var pending []LedgerEntry

	for _, p := range stored {
		matched := false
		for i, g := range generated {
			if used[i] {
				continue
			}
			if len(DifferingFields(p, g)) == 0 {
				used[i] = true
				out.Matches = append(out.Matches, EntryPair{Persisted: p, Generated: g})
				matched = true
				break
			}
		}
		if !matched {
			pending = append(pending, p)
		}
	}

	for _, p := range pending {
		best, bestFields := -1, []string(nil)
		for i, g := range generated {
			if used[i] || !related(p, g) {
				continue
			}
			fields := DifferingFields(p, g)
			if best == -1 || len(fields) < len(bestFields) {
				best, bestFields = i, fields
			}
		}
		if best == -1 {
			out.Deleted = append(out.Deleted, p)
			continue
		}
		used[best] = true
		out.Diffs = append(out.Diffs, EntryDiff{Persisted: p, Generated: generated[best], Fields: bestFields})
	}

	for i, g := range generated {
		if !used[i] {
			out.New = append(out.New, g)
		}
	}
	return out
}

func related(a, b LedgerEntry) bool {
	if a.Currency != b.Currency {
		return false
	}
	return sameStr(a.CreditAccountID, b.CreditAccountID) || sameStr(a.DebitAccountID, b.DebitAccountID)
}

// DifferingFields lists the names of fields (other than ID) that differ.
func DifferingFields(a, b LedgerEntry) []string {
	var out []string
	add := func(name string, equal bool) {
		if !equal {
			out = append(out, name)
		}
	}
	add("charge_id", a.ChargeID == b.ChargeID)
	add("owner_id", a.OwnerID == b.OwnerID)
	add("currency", a.Currency == b.Currency)
	add("credit_account_id", sameStr(a.CreditAccountID, b.CreditAccountID))
	add("debit_account_id", sameStr(a.DebitAccountID, b.DebitAccountID))
	add("credit_amount_1", sameDec(a.CreditAmount1, b.CreditAmount1))
	add("debit_amount_1", sameDec(a.DebitAmount1, b.DebitAmount1))
	add("local_currency_credit_amount_1", a.LocalCurrencyCreditAmount1.Equal(b.LocalCurrencyCreditAmount1))
	add("local_currency_debit_amount_1", a.LocalCurrencyDebitAmount1.Equal(b.LocalCurrencyDebitAmount1))
	add("invoice_date", finance.FormatDate(a.InvoiceDate) == finance.FormatDate(b.InvoiceDate))
	add("value_date", finance.FormatDate(a.ValueDate) == finance.FormatDate(b.ValueDate))
	add("description", sameStr(a.Description, b.Description))
	add("reference_1", sameStr(a.Reference1, b.Reference1))
	add("currency_rate", sameDec(a.CurrencyRate, b.CurrencyRate))
	add("is_creditor_counterparty", a.IsCreditorCounterparty == b.IsCreditorCounterparty)
	return out
}

func sameStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameDec(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
