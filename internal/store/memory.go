package store

import (
	"context"
	"sort"
	"sync"

	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
)

// InMemory implements Store with in-process concurrency safety. It backs tests and
// the CLI's fixture mode.
type InMemory struct {
	mu      sync.RWMutex
	charges map[string]finance.Charge
	txns    map[string]finance.Transaction
	docs    map[string]finance.Document
	misc    map[string]finance.MiscExpense
	entries map[string][]ledger.LedgerEntry // charge id -> entries
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		charges: make(map[string]finance.Charge),
		txns:    make(map[string]finance.Transaction),
		docs:    make(map[string]finance.Document),
		misc:    make(map[string]finance.MiscExpense),
		entries: make(map[string][]ledger.LedgerEntry),
	}
}

// PutCharge inserts or replaces a charge.
func (s *InMemory) PutCharge(c finance.Charge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges[c.ID] = c
}

// PutTransaction inserts or replaces a transaction.
func (s *InMemory) PutTransaction(t finance.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[t.ID] = t
}

// PutDocument inserts or replaces a document.
func (s *InMemory) PutDocument(d finance.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d
}

// PutMiscExpense inserts or replaces a misc expense.
func (s *InMemory) PutMiscExpense(m finance.MiscExpense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misc[m.ID] = m
}

func (s *InMemory) ChargesByIDs(_ context.Context, ids []string) (map[string]finance.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]finance.Charge, len(ids))
	for _, id := range ids {
		if c, ok := s.charges[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *InMemory) TransactionsByChargeIDs(_ context.Context, chargeIDs []string) (map[string][]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(chargeIDs)
	out := make(map[string][]finance.Transaction)
	for _, t := range s.txns {
		if want[t.ChargeID] {
			out[t.ChargeID] = append(out[t.ChargeID], t)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}

func (s *InMemory) DocumentsByChargeIDs(_ context.Context, chargeIDs []string) (map[string][]finance.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(chargeIDs)
	out := make(map[string][]finance.Document)
	for _, d := range s.docs {
		if want[d.ChargeID] {
			out[d.ChargeID] = append(out[d.ChargeID], d)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}

func (s *InMemory) MiscExpensesByChargeIDs(_ context.Context, chargeIDs []string) (map[string][]finance.MiscExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := idSet(chargeIDs)
	out := make(map[string][]finance.MiscExpense)
	for _, m := range s.misc {
		if want[m.ChargeID] {
			out[m.ChargeID] = append(out[m.ChargeID], m)
		}
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}

func (s *InMemory) LedgerEntriesByChargeIDs(_ context.Context, chargeIDs []string) (map[string][]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]ledger.LedgerEntry)
	for _, id := range chargeIDs {
		if list, ok := s.entries[id]; ok {
			// return copy
			out[id] = append([]ledger.LedgerEntry(nil), list...)
		}
	}
	return out, nil
}

func (s *InMemory) TransactionsByIDs(_ context.Context, ids []string) (map[string]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]finance.Transaction, len(ids))
	for _, id := range ids {
		if t, ok := s.txns[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (s *InMemory) DocumentsByIDs(_ context.Context, ids []string) (map[string]finance.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]finance.Document, len(ids))
	for _, id := range ids {
		if d, ok := s.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (s *InMemory) TransactionsByOwner(_ context.Context, ownerID string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []finance.Transaction
	for _, t := range s.txns {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) DocumentsByOwner(_ context.Context, ownerID string) ([]finance.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []finance.Document
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ReplaceLedgerEntries(ctx context.Context, chargeID string, entries []ledger.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charges[chargeID]; !ok {
		return ErrNotFound
	}
	if len(entries) == 0 {
		delete(s.entries, chargeID)
		return nil
	}
	s.entries[chargeID] = append([]ledger.LedgerEntry(nil), entries...)
	return nil
}

func idSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
