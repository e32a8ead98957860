package ledger

import (
	"context"
	"sort"

	"accounter.org/internal/finance"
)

// LedgerEntriesFromMiscExpenses emits one entry per misc expense. When the local
// amount is negative the stored creditor and debtor are swapped so both entry
// amounts stay non-negative.
func (b *Builder) LedgerEntriesFromMiscExpenses(ctx context.Context, charge finance.Charge, expenses []finance.MiscExpense) ([]LedgerEntry, error) {
	sorted := append([]finance.MiscExpense(nil), expenses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ValueDate.Equal(sorted[j].ValueDate) {
			return sorted[i].ValueDate.Before(sorted[j].ValueDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]LedgerEntry, 0, len(sorted))
	for _, exp := range sorted {
		local, foreign, rate, err := b.toLocal(ctx, "ledger.misc_expense", charge.ID, exp.Amount, exp.Currency, exp.ValueDate)
		if err != nil {
			return nil, err
		}
		creditor, debtor := exp.CreditorID, exp.DebtorID
		if local.IsNegative() {
			creditor, debtor = debtor, creditor
		}
		var desc *string
		if exp.Description != "" {
			desc = strPtr(exp.Description)
		}
		e := assemble(entrySpec{
			currency:    exp.Currency,
			credit:      creditor,
			debit:       debtor,
			invoice:     exp.InvoiceDate,
			value:       exp.ValueDate,
			description: desc,
			reference:   strPtr(exp.ID),
		}, local, foreign, rate)
		e.IsCreditorCounterparty = creditor != charge.OwnerID
		out = append(out, e)
	}
	return out, nil
}

func (b *Builder) miscEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	return b.LedgerEntriesFromMiscExpenses(ctx, facts.Charge, facts.MiscExpenses)
}
