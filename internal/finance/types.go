// Package finance holds the entities ingested from banks and document pipelines.
// Amounts are decimals in major units; signs follow the owner's perspective
// (negative means money left the owner).
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-ish currency code.
type Currency string

const (
	ILS  Currency = "ILS"
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	GBP  Currency = "GBP"
	CAD  Currency = "CAD"
	JPY  Currency = "JPY"
	AUD  Currency = "AUD"
	SEK  Currency = "SEK"
	GRT  Currency = "GRT"
	USDC Currency = "USDC"
	ETH  Currency = "ETH"
)

// DocumentType is the kind of financial document.
type DocumentType string

const (
	Invoice        DocumentType = "INVOICE"
	CreditInvoice  DocumentType = "CREDIT_INVOICE"
	InvoiceReceipt DocumentType = "INVOICE_RECEIPT"
	Receipt        DocumentType = "RECEIPT"
	Proforma       DocumentType = "PROFORMA"
	Other          DocumentType = "OTHER"
	Unprocessed    DocumentType = "UNPROCESSED"
)

// IsAccountable reports whether documents of this type produce ledger entries.
func (t DocumentType) IsAccountable() bool {
	switch t {
	case Invoice, CreditInvoice, InvoiceReceipt, Receipt:
		return true
	}
	return false
}

// Transaction is a bank or card movement. It is immutable once imported, except for
// its charge linkage.
type Transaction struct {
	ID             string           `json:"id"`
	ChargeID       string           `json:"charge_id"`
	OwnerID        string           `json:"owner_id"`
	AccountID      string           `json:"account_id"`
	BusinessID     *string          `json:"business_id,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       Currency         `json:"currency"`
	EventDate      time.Time        `json:"event_date"`
	DebitDate      *time.Time       `json:"debit_date,omitempty"`
	DebitTimestamp *time.Time       `json:"debit_timestamp,omitempty"`
	CurrencyRate   *decimal.Decimal `json:"currency_rate,omitempty"` // bank-stated rate, conversions only
	IsFee          bool             `json:"is_fee"`
	Description    string           `json:"description,omitempty"`
}

// ValueDate is the date money actually moved: debit timestamp, then debit date,
// then event date.
func (t Transaction) ValueDate() time.Time {
	if t.DebitTimestamp != nil {
		return *t.DebitTimestamp
	}
	if t.DebitDate != nil {
		return *t.DebitDate
	}
	return t.EventDate
}

// Document is an invoice, receipt or similar.
type Document struct {
	ID           string           `json:"id"`
	ChargeID     string           `json:"charge_id"`
	OwnerID      string           `json:"owner_id"`
	Serial       string           `json:"serial,omitempty"`
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`
	CurrencyCode *Currency        `json:"currency_code,omitempty"`
	VatAmount    *decimal.Decimal `json:"vat_amount,omitempty"`
	Type         DocumentType     `json:"document_type"`
	Date         time.Time        `json:"date"`
	CreditorID   string           `json:"creditor_id"`
	DebtorID     string           `json:"debtor_id"`
}

// Counterparty returns the side of the document that is not ownerID.
func (d Document) Counterparty(ownerID string) string {
	if d.CreditorID == ownerID {
		return d.DebtorID
	}
	return d.CreditorID
}

// MiscExpense is a manually recorded movement attached to a charge.
type MiscExpense struct {
	ID          string          `json:"id"`
	ChargeID    string          `json:"charge_id"`
	CreditorID  string          `json:"creditor_id"`
	DebtorID    string          `json:"debtor_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	InvoiceDate time.Time       `json:"invoice_date"`
	ValueDate   time.Time       `json:"value_date"`
	Description string          `json:"description,omitempty"`
}

// Charge groups the transactions, documents and ledger entries of one economic event.
type Charge struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Kind          ChargeKind `json:"kind"`
	TaxCategoryID *string    `json:"tax_category_id,omitempty"`
	Description   string     `json:"description,omitempty"`
}
