package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
)

// LedgerEntry is one double-entry movement. Local amounts are always present and,
// for a single entry, equal on both sides; foreign amounts are set only when the entry
// currency differs from the local currency.
type LedgerEntry struct {
	ID                         string           `json:"id"`
	ChargeID                   string           `json:"charge_id"`
	OwnerID                    string           `json:"owner_id"`
	Currency                   finance.Currency `json:"currency"`
	CreditAccountID            *string          `json:"credit_account_id,omitempty"`
	DebitAccountID             *string          `json:"debit_account_id,omitempty"`
	CreditAmount1              *decimal.Decimal `json:"credit_amount_1,omitempty"`
	DebitAmount1               *decimal.Decimal `json:"debit_amount_1,omitempty"`
	LocalCurrencyCreditAmount1 decimal.Decimal  `json:"local_currency_credit_amount_1"`
	LocalCurrencyDebitAmount1  decimal.Decimal  `json:"local_currency_debit_amount_1"`
	InvoiceDate                time.Time        `json:"invoice_date"`
	ValueDate                  time.Time        `json:"value_date"`
	Description                *string          `json:"description,omitempty"`
	Reference1                 *string          `json:"reference_1,omitempty"`
	CurrencyRate               *decimal.Decimal `json:"currency_rate,omitempty"`
	IsCreditorCounterparty     bool             `json:"is_creditor_counterparty"`
}

// IsBalanced reports whether the entry balances in the local currency.
func (e LedgerEntry) IsBalanced() bool {
	return e.LocalCurrencyCreditAmount1.Equal(e.LocalCurrencyDebitAmount1)
}

// Accounts maps ledger roles to account (tax category) ids.
type Accounts struct {
	FeeExpense              string `yaml:"fee_expense" json:"fee_expense"`
	ConversionFee           string `yaml:"conversion_fee" json:"conversion_fee"`
	ConversionTransit       string `yaml:"conversion_transit" json:"conversion_transit"`
	InternalTransferTransit string `yaml:"internal_transfer_transit" json:"internal_transfer_transit"`
	InputVAT                string `yaml:"input_vat" json:"input_vat"`
	OutputVAT               string `yaml:"output_vat" json:"output_vat"`
}

// Missing lists the yaml names of unset accounts.
func (a Accounts) Missing() []string {
	var out []string
	for _, f := range []struct{ name, v string }{
		{"fee_expense", a.FeeExpense},
		{"conversion_fee", a.ConversionFee},
		{"conversion_transit", a.ConversionTransit},
		{"internal_transfer_transit", a.InternalTransferTransit},
		{"input_vat", a.InputVAT},
		{"output_vat", a.OutputVAT},
	} {
		if f.v == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Validation errors.
var (
	ErrSameCurrency       = fault.New(fault.Validation, "conversion records must have different currencies")
	ErrEmptyBalanceCharge = fault.New(fault.Validation, "balance charge has no misc expenses")
	ErrUnknownChargeKind  = fault.New(fault.Validation, "unknown charge kind")
)

// Data errors: the source transactions/documents need fixing.
var (
	ErrMismatchedRates     = fault.New(fault.Data, "conversion records have mismatching currency rates")
	ErrAmountMismatch      = fault.New(fault.Data, "conversion amounts do not match the bank rate")
	ErrMissingRate         = fault.New(fault.Data, "conversion records are missing a currency rate")
	ErrMissingLocalRate    = fault.New(fault.Data, "missing local currency rate")
	ErrMissingExchangeRate = fault.New(fault.Data, "missing exchange rate")
	ErrMissingAmount       = fault.New(fault.Data, "missing amount")
	ErrMissingBusiness     = fault.New(fault.Data, "transaction is missing a counterparty business")
	ErrMissingTaxCategory  = fault.New(fault.Data, "charge is missing a tax category")
	ErrForeignDocument     = fault.New(fault.Data, "document does not involve the charge owner")
	ErrInvalidConversion   = fault.New(fault.Data, "conversion charge must have one outgoing and one incoming transaction in different currencies")
)

// ErrUnbalancedEntry is an engine bug: an entry left the builder unbalanced.
var ErrUnbalancedEntry = fault.New(fault.Internal, "unbalanced ledger entry")

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
