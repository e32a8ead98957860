package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
	"accounter.org/internal/rates"
)

const (
	owner    = "owner-1"
	business = "biz-1"
	bank     = "bank-ils"
	bankUSD  = "bank-usd"
)

var testAccounts = Accounts{
	FeeExpense:              "acc-fees",
	ConversionFee:           "acc-conversion-fee",
	ConversionTransit:       "acc-conversion-transit",
	InternalTransferTransit: "acc-transfer-transit",
	InputVAT:                "acc-input-vat",
	OutputVAT:               "acc-output-vat",
}

var day = finance.Date(2024, time.March, 14)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestBuilder(provider rates.Provider) *Builder {
	b := NewBuilder(finance.ILS, provider, testAccounts)
	n := 0
	b.NewID = func() string {
		n++
		return fmt.Sprintf("entry-%02d", n)
	}
	return b
}

func usdRates() *rates.Static {
	return rates.NewStatic().Set(finance.USD, finance.ILS, day, dec("3.6"))
}

func assertBalanced(t interface {
	Helper()
	Fatalf(string, ...any)
}, entries []LedgerEntry) {
	t.Helper()
	for _, e := range entries {
		if !e.IsBalanced() || e.LocalCurrencyCreditAmount1.IsNegative() {
			t.Fatalf("entry %s unbalanced: credit=%s debit=%s", e.ID, e.LocalCurrencyCreditAmount1, e.LocalCurrencyDebitAmount1)
		}
	}
}
