// Package ledger turns charge-level financial facts into balanced double-entry
// records, compares them with persisted records and decides whether a charge is
// frozen by the ledger lock.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
	"accounter.org/internal/ids"
	"accounter.org/internal/rates"
)

// ChargeFacts is everything the builder needs about one charge.
type ChargeFacts struct {
	Charge       finance.Charge
	Transactions []finance.Transaction
	Documents    []finance.Document
	MiscExpenses []finance.MiscExpense
}

// Builder generates ledger entries. It holds no mutable state and is safe for
// concurrent use across charges.
type Builder struct {
	LocalCurrency finance.Currency
	Rates         rates.Provider
	Accounts      Accounts
	// NewID assigns ids to generated entries; defaults to ULIDs.
	NewID func() string
}

// NewBuilder constructs a Builder.
func NewBuilder(local finance.Currency, provider rates.Provider, accounts Accounts) *Builder {
	return &Builder{LocalCurrency: local, Rates: provider, Accounts: accounts, NewID: ids.New}
}

// BuildChargeLedger returns the complete entry set for a charge or an error; never a
// partial set.
func (b *Builder) BuildChargeLedger(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	charge := facts.Charge
	var (
		entries []LedgerEntry
		err     error
	)
	switch charge.Kind {
	case finance.KindCommon, finance.KindBusinessTrip:
		entries, err = b.collect(ctx, facts, b.documentEntries, b.transactionEntries, b.miscEntries)
	case finance.KindSalary:
		entries, err = b.collect(ctx, facts, b.transactionEntries, b.miscEntries)
	case finance.KindConversion:
		entries, err = b.collect(ctx, facts, b.conversionEntries, b.miscEntries)
	case finance.KindInternalTransfer:
		entries, err = b.collect(ctx, facts, b.internalTransferEntries, b.miscEntries)
	case finance.KindBalance:
		entries, _, err = b.GenerateBalanceCharge(ctx, charge, facts.MiscExpenses)
		if err != nil {
			return nil, err
		}
		return entries, nil
	default:
		return nil, fault.Wrap(ErrUnknownChargeKind, "ledger.build", "charge_id", charge.ID, "kind", charge.Kind.String())
	}
	if err != nil {
		return nil, err
	}
	return b.finish(charge, entries)
}

type entryFunc func(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error)

func (b *Builder) collect(ctx context.Context, facts ChargeFacts, fns ...entryFunc) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, fn := range fns {
		entries, err := fn(ctx, facts)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// finish stamps identity fields and enforces the balance invariant.
func (b *Builder) finish(charge finance.Charge, entries []LedgerEntry) ([]LedgerEntry, error) {
	newID := b.NewID
	if newID == nil {
		newID = ids.New
	}
	for i := range entries {
		entries[i].ID = newID()
		entries[i].ChargeID = charge.ID
		entries[i].OwnerID = charge.OwnerID
	}
	if err := EnsureBalanced(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) documentEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	charge := facts.Charge
	docs := append([]finance.Document(nil), facts.Documents...)
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].Date.Equal(docs[j].Date) {
			return docs[i].Date.Before(docs[j].Date)
		}
		return docs[i].ID < docs[j].ID
	})

	var out []LedgerEntry
	for _, doc := range docs {
		if !doc.Type.IsAccountable() {
			continue
		}
		entries, err := b.documentEntry(ctx, charge, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (b *Builder) documentEntry(ctx context.Context, charge finance.Charge, doc finance.Document) ([]LedgerEntry, error) {
	const op = "ledger.document"
	if doc.TotalAmount == nil || doc.CurrencyCode == nil {
		return nil, fault.Wrap(ErrMissingAmount, op, "charge_id", charge.ID, "document_id", doc.ID)
	}
	if charge.TaxCategoryID == nil {
		return nil, fault.Wrap(ErrMissingTaxCategory, op, "charge_id", charge.ID, "document_id", doc.ID)
	}
	ownerIsCreditor := doc.CreditorID == charge.OwnerID
	if !ownerIsCreditor && doc.DebtorID != charge.OwnerID {
		return nil, fault.Wrap(ErrForeignDocument, op, "charge_id", charge.ID, "document_id", doc.ID)
	}
	// Income documents credit the tax category; credit invoices reverse the direction.
	income := ownerIsCreditor != (doc.Type == finance.CreditInvoice)
	counterparty := doc.Counterparty(charge.OwnerID)
	currency := *doc.CurrencyCode

	total := doc.TotalAmount.Abs()
	net := total
	var vat decimal.Decimal
	if doc.VatAmount != nil && !doc.VatAmount.IsZero() {
		vat = doc.VatAmount.Abs()
		net = total.Sub(vat)
	}

	var reference *string
	if doc.Serial != "" {
		reference = strPtr(doc.Serial)
	}

	mk := func(amount decimal.Decimal, account string) (LedgerEntry, error) {
		credit, debit := account, counterparty
		if !income {
			credit, debit = counterparty, account
		}
		e, err := b.entry(ctx, entrySpec{
			op:        op,
			chargeID:  charge.ID,
			amount:    amount,
			currency:  currency,
			credit:    credit,
			debit:     debit,
			invoice:   doc.Date,
			value:     doc.Date,
			reference: reference,
		})
		if err != nil {
			return LedgerEntry{}, err
		}
		e.IsCreditorCounterparty = credit == counterparty
		return e, nil
	}

	main, err := mk(net, *charge.TaxCategoryID)
	if err != nil {
		return nil, err
	}
	out := []LedgerEntry{main}
	if !vat.IsZero() {
		vatAccount := b.Accounts.InputVAT
		if income {
			vatAccount = b.Accounts.OutputVAT
		}
		vatEntry, err := mk(vat, vatAccount)
		if err != nil {
			return nil, err
		}
		out = append(out, vatEntry)
	}
	return out, nil
}

func sortedTransactions(txns []finance.Transaction) []finance.Transaction {
	out := append([]finance.Transaction(nil), txns...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ValueDate(), out[j].ValueDate()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *Builder) transactionEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, tx := range sortedTransactions(facts.Transactions) {
		var (
			e   LedgerEntry
			err error
		)
		if tx.IsFee {
			e, err = b.bankEntry(ctx, facts.Charge, tx, b.Accounts.FeeExpense, false)
		} else {
			if tx.BusinessID == nil {
				return nil, fault.Wrap(ErrMissingBusiness, "ledger.transaction", "charge_id", facts.Charge.ID, "transaction_id", tx.ID)
			}
			e, err = b.bankEntry(ctx, facts.Charge, tx, *tx.BusinessID, true)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Builder) feeEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, tx := range sortedTransactions(facts.Transactions) {
		if !tx.IsFee {
			continue
		}
		e, err := b.bankEntry(ctx, facts.Charge, tx, b.Accounts.FeeExpense, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Builder) internalTransferEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, tx := range sortedTransactions(facts.Transactions) {
		account := b.Accounts.InternalTransferTransit
		if tx.IsFee {
			account = b.Accounts.FeeExpense
		}
		e, err := b.bankEntry(ctx, facts.Charge, tx, account, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// bankEntry moves a transaction between its bank account and other. Outflows debit
// other; inflows credit it.
func (b *Builder) bankEntry(ctx context.Context, charge finance.Charge, tx finance.Transaction, other string, otherIsCounterparty bool) (LedgerEntry, error) {
	credit, debit := tx.AccountID, other
	if tx.Amount.IsPositive() {
		credit, debit = other, tx.AccountID
	}
	var desc *string
	if tx.Description != "" {
		desc = strPtr(tx.Description)
	}
	e, err := b.entry(ctx, entrySpec{
		op:          "ledger.transaction",
		chargeID:    charge.ID,
		amount:      tx.Amount,
		currency:    tx.Currency,
		credit:      credit,
		debit:       debit,
		invoice:     tx.EventDate,
		value:       finance.Truncate(tx.ValueDate()),
		description: desc,
		reference:   strPtr(tx.ID),
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	e.IsCreditorCounterparty = otherIsCounterparty && credit == other
	return e, nil
}

type entrySpec struct {
	op          string
	chargeID    string
	amount      decimal.Decimal
	currency    finance.Currency
	credit      string
	debit       string
	invoice     time.Time
	value       time.Time
	description *string
	reference   *string
}

// entry builds a single balanced entry. The sign of spec.amount is dropped: callers
// express direction through the credit/debit accounts.
func (b *Builder) entry(ctx context.Context, spec entrySpec) (LedgerEntry, error) {
	local, foreign, rate, err := b.toLocal(ctx, spec.op, spec.chargeID, spec.amount, spec.currency, spec.value)
	if err != nil {
		return LedgerEntry{}, err
	}
	return assemble(spec, local, foreign, rate), nil
}

func assemble(spec entrySpec, local decimal.Decimal, foreign, rate *decimal.Decimal) LedgerEntry {
	local = local.Abs()
	e := LedgerEntry{
		Currency:                   spec.currency,
		CreditAccountID:            strPtr(spec.credit),
		DebitAccountID:             strPtr(spec.debit),
		LocalCurrencyCreditAmount1: local,
		LocalCurrencyDebitAmount1:  local,
		InvoiceDate:                finance.Truncate(spec.invoice),
		ValueDate:                  finance.Truncate(spec.value),
		Description:                spec.description,
		Reference1:                 spec.reference,
		CurrencyRate:               rate,
	}
	if foreign != nil {
		abs := foreign.Abs()
		e.CreditAmount1 = decPtr(abs)
		e.DebitAmount1 = decPtr(abs)
	}
	return e
}

// toLocal converts a signed amount into the local currency, keeping the sign. For
// foreign currencies it also returns the original amount and the rate used.
func (b *Builder) toLocal(ctx context.Context, op, chargeID string, amount decimal.Decimal, currency finance.Currency, date time.Time) (decimal.Decimal, *decimal.Decimal, *decimal.Decimal, error) {
	if currency == b.LocalCurrency {
		return amount.Round(2), nil, nil, nil
	}
	rate, err := b.rate(ctx, op, chargeID, currency, b.LocalCurrency, date)
	if err != nil {
		return decimal.Zero, nil, nil, err
	}
	return amount.Mul(rate).Round(2), decPtr(amount), decPtr(rate), nil
}
