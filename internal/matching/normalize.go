// Package matching proposes document/transaction pairs with a confidence score.
// It is advisory: nothing here mutates charges.
package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

// DefaultWindowMonths bounds how far apart a candidate may be from its anchor.
const DefaultWindowMonths = 12

// NormalizeDocumentAmount converts a stored document total into the owner's signed
// perspective. The absolute amount is negated when the business is the creditor
// (the owner pays) and negated again for credit invoices, so a credit invoice issued
// by a business comes out positive.
func NormalizeDocumentAmount(total decimal.Decimal, isBusinessCreditor bool, typ finance.DocumentType) decimal.Decimal {
	amount := total.Abs()
	if isBusinessCreditor {
		amount = amount.Neg()
	}
	if typ == finance.CreditInvoice {
		amount = amount.Neg()
	}
	return amount
}

// IsValidTransactionForMatching excludes fee lines.
func IsValidTransactionForMatching(t finance.Transaction) bool {
	return !t.IsFee
}

// IsValidDocumentForMatching requires both a total (zero is fine) and a currency.
func IsValidDocumentForMatching(d finance.Document) bool {
	return d.TotalAmount != nil && d.CurrencyCode != nil
}

// IsWithinDateWindow reports whether candidate lies in
// [reference - windowMonths, reference + windowMonths], both ends inclusive, using
// calendar months.
func IsWithinDateWindow(candidate, reference time.Time, windowMonths int) bool {
	from := finance.AddMonths(reference, -windowMonths)
	to := finance.AddMonths(reference, windowMonths)
	return !candidate.Before(from) && !candidate.After(to)
}
