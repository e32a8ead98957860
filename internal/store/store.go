// Package store defines the persistence boundary of the accounting core. Reads are
// batched by id so a request touching many charges costs one round trip per entity
// type.
package store

import (
	"context"
	"errors"

	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Reader loads entities in batches. Missing ids are simply absent from the result.
type Reader interface {
	ChargesByIDs(ctx context.Context, ids []string) (map[string]finance.Charge, error)
	TransactionsByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.Transaction, error)
	DocumentsByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.Document, error)
	MiscExpensesByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.MiscExpense, error)
	LedgerEntriesByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]ledger.LedgerEntry, error)

	TransactionsByIDs(ctx context.Context, ids []string) (map[string]finance.Transaction, error)
	DocumentsByIDs(ctx context.Context, ids []string) (map[string]finance.Document, error)
	// TransactionsByOwner and DocumentsByOwner return matching pools.
	TransactionsByOwner(ctx context.Context, ownerID string) ([]finance.Transaction, error)
	DocumentsByOwner(ctx context.Context, ownerID string) ([]finance.Document, error)
}

// Writer persists generated ledger entries.
type Writer interface {
	// ReplaceLedgerEntries atomically swaps the stored entries of a charge.
	ReplaceLedgerEntries(ctx context.Context, chargeID string, entries []ledger.LedgerEntry) error
}

// Store is the full persistence surface.
type Store interface {
	Reader
	Writer
}

// LoadFacts assembles builder input for the given charges. Charges that do not exist
// are skipped.
func LoadFacts(ctx context.Context, r Reader, chargeIDs []string) (map[string]ledger.ChargeFacts, error) {
	charges, err := r.ChargesByIDs(ctx, chargeIDs)
	if err != nil {
		return nil, err
	}
	txns, err := r.TransactionsByChargeIDs(ctx, chargeIDs)
	if err != nil {
		return nil, err
	}
	docs, err := r.DocumentsByChargeIDs(ctx, chargeIDs)
	if err != nil {
		return nil, err
	}
	misc, err := r.MiscExpensesByChargeIDs(ctx, chargeIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ledger.ChargeFacts, len(charges))
	for id, c := range charges {
		out[id] = ledger.ChargeFacts{
			Charge:       c,
			Transactions: txns[id],
			Documents:    docs[id],
			MiscExpenses: misc[id],
		}
	}
	return out, nil
}
