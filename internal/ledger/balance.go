package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
	"accounter.org/internal/obs"
)

// BalanceInfo is the multi-entity balance summary. The balance engine that fills it
// lives outside this package; GenerateBalanceCharge returns a placeholder.
type BalanceInfo struct {
	Computed           bool            `json:"computed"`
	BalanceSum         decimal.Decimal `json:"balance_sum"`
	UnbalancedEntities []string        `json:"unbalanced_entities"`
}

// GenerateBalanceCharge builds the entries of a balance-adjustment charge from its
// misc expenses.
func (b *Builder) GenerateBalanceCharge(ctx context.Context, charge finance.Charge, expenses []finance.MiscExpense) ([]LedgerEntry, BalanceInfo, error) {
	if len(expenses) == 0 {
		return nil, BalanceInfo{}, fault.Wrap(ErrEmptyBalanceCharge, "ledger.balance", "charge_id", charge.ID)
	}
	entries, err := b.LedgerEntriesFromMiscExpenses(ctx, charge, expenses)
	if err != nil {
		return nil, BalanceInfo{}, err
	}
	entries, err = b.finish(charge, entries)
	if err != nil {
		return nil, BalanceInfo{}, err
	}
	return entries, BalanceInfo{BalanceSum: decimal.Zero}, nil
}

// EnsureBalanced fails on the first entry whose local amounts differ or are negative.
func EnsureBalanced(entries []LedgerEntry) error {
	for _, e := range entries {
		if e.IsBalanced() && !e.LocalCurrencyCreditAmount1.IsNegative() {
			continue
		}
		obs.Logger().Error().
			Str("charge_id", e.ChargeID).
			Str("entry_id", e.ID).
			Str("local_credit", e.LocalCurrencyCreditAmount1.String()).
			Str("local_debit", e.LocalCurrencyDebitAmount1.String()).
			Msg("unbalanced ledger entry")
		return fault.Wrap(ErrUnbalancedEntry, "ledger.ensure_balanced",
			"charge_id", e.ChargeID,
			"entry_id", e.ID,
			"local_credit", e.LocalCurrencyCreditAmount1.String(),
			"local_debit", e.LocalCurrencyDebitAmount1.String())
	}
	return nil
}

// SumLocal returns total local credits and debits per account across entries. The
// conversion fee shows up as the imbalance of the transit account before the fee
// entry is added.
func SumLocal(entries []LedgerEntry) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.CreditAccountID != nil {
			out[*e.CreditAccountID] = out[*e.CreditAccountID].Sub(e.LocalCurrencyCreditAmount1)
		}
		if e.DebitAccountID != nil {
			out[*e.DebitAccountID] = out[*e.DebitAccountID].Add(e.LocalCurrencyDebitAmount1)
		}
	}
	return out
}
