// Package accounting is the application service over the accounting core. It reads
// facts through the store, runs the matcher, ledger builder and lock guard, and
// persists regenerated ledgers.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"accounter.org/internal/audit"
	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
	"accounter.org/internal/matching"
	"accounter.org/internal/obs"
	"accounter.org/internal/store"
	"accounter.org/internal/stream"
)

// ErrChargeLocked rejects mutations of charges at or before the ledger lock date.
var ErrChargeLocked = fault.New(fault.Validation, "charge is locked")

// Service orchestrates the accounting core. It is safe for concurrent use.
type Service struct {
	store       store.Store
	builder     *ledger.Builder
	matcher     *matching.Matcher
	lockDate    string
	events      *stream.Stream
	parallelism int
}

// Option configures Service.
type Option func(*Service)

// WithLockDate sets the ledger lock date (yyyy-MM-dd, empty disables the lock).
func WithLockDate(date string) Option {
	return func(s *Service) { s.lockDate = date }
}

// WithMatcher replaces the default matcher.
func WithMatcher(m *matching.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithStream publishes ledger events to st.
func WithStream(st *stream.Stream) Option {
	return func(s *Service) { s.events = st }
}

// WithParallelism bounds concurrent charge generation in GenerateLedgers.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// New constructs a Service.
func New(st store.Store, builder *ledger.Builder, opts ...Option) *Service {
	s := &Service{
		store:       st,
		builder:     builder,
		matcher:     matching.NewMatcher(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockDate returns the configured lock date.
func (s *Service) LockDate() string { return s.lockDate }

// MatchTransaction proposes documents for a transaction. Documents already linked
// to the transaction's charge are not proposed again.
func (s *Service) MatchTransaction(ctx context.Context, transactionID string) ([]matching.MatchCandidate, error) {
	found, err := s.store.TransactionsByIDs(ctx, []string{transactionID})
	if err != nil {
		return nil, err
	}
	anchor, ok := found[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	docs, err := s.store.DocumentsByOwner(ctx, anchor.OwnerID)
	if err != nil {
		return nil, err
	}
	var pool []finance.Document
	for _, d := range docs {
		if anchor.ChargeID == "" || d.ChargeID != anchor.ChargeID {
			pool = append(pool, d)
		}
	}
	cands, err := s.matcher.MatchTransaction(anchor, pool, anchor.OwnerID)
	if err != nil {
		s.observeError(ctx, "accounting.match_transaction", err)
		return nil, err
	}
	obs.ObserveCandidates(len(cands))
	return cands, nil
}

// MatchDocument proposes transactions for a document.
func (s *Service) MatchDocument(ctx context.Context, documentID string) ([]matching.MatchCandidate, error) {
	found, err := s.store.DocumentsByIDs(ctx, []string{documentID})
	if err != nil {
		return nil, err
	}
	anchor, ok := found[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	txns, err := s.store.TransactionsByOwner(ctx, anchor.OwnerID)
	if err != nil {
		return nil, err
	}
	var pool []finance.Transaction
	for _, t := range txns {
		if anchor.ChargeID == "" || t.ChargeID != anchor.ChargeID {
			pool = append(pool, t)
		}
	}
	cands, err := s.matcher.MatchDocument(anchor, pool, anchor.OwnerID)
	if err != nil {
		s.observeError(ctx, "accounting.match_document", err)
		return nil, err
	}
	obs.ObserveCandidates(len(cands))
	return cands, nil
}

// GenerateLedger builds the ledger of one charge without persisting it.
func (s *Service) GenerateLedger(ctx context.Context, chargeID string) ([]ledger.LedgerEntry, error) {
	facts, err := s.loadOne(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, facts)
}

// BatchResult is the outcome for one charge of GenerateLedgers.
type BatchResult struct {
	Entries []ledger.LedgerEntry
	Err     error
}

// GenerateLedgers builds ledgers for many charges concurrently. A failing charge does
// not affect the others; only context cancellation aborts the batch.
func (s *Service) GenerateLedgers(ctx context.Context, chargeIDs []string) (map[string]BatchResult, error) {
	facts, err := store.LoadFacts(ctx, s.store, chargeIDs)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(map[string]BatchResult, len(chargeIDs))
	)
	for _, id := range chargeIDs {
		if _, ok := facts[id]; !ok {
			out[id] = BatchResult{Err: fmt.Errorf("charge %s: %w", id, store.ErrNotFound)}
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, id := range chargeIDs {
		f, ok := facts[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := s.build(gctx, f)
			mu.Lock()
			out[f.Charge.ID] = BatchResult{Entries: entries, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validation compares a charge's persisted ledger with a fresh generation.
type Validation struct {
	ChargeID  string               `json:"charge_id"`
	Generated []ledger.LedgerEntry `json:"generated"`
	Diff      ledger.LedgerDiff    `json:"diff"`
	Locked    bool                 `json:"locked"`
}

// ValidateLedger regenerates a charge's ledger in memory and diffs it against the
// stored entries.
func (s *Service) ValidateLedger(ctx context.Context, chargeID string) (Validation, error) {
	facts, err := s.loadOne(ctx, chargeID)
	if err != nil {
		return Validation{}, err
	}
	generated, err := s.build(ctx, facts)
	if err != nil {
		return Validation{}, err
	}
	persisted, err := s.store.LedgerEntriesByChargeIDs(ctx, []string{chargeID})
	if err != nil {
		return Validation{}, err
	}
	stored := persisted[chargeID]
	diff := ledger.DiffLedger(generated, stored)
	locked := ledger.IsChargeLocked(ledger.ChargeDates(facts.Transactions, facts.Documents, stored), s.lockDate)

	s.publish(ctx, stream.LedgerEvent{
		Type:     stream.EventValidated,
		ChargeID: chargeID,
		OwnerID:  facts.Charge.OwnerID,
		Kind:     facts.Charge.Kind.String(),
		Entries:  len(generated),
		Clean:    diff.IsClean(),
	})
	return Validation{ChargeID: chargeID, Generated: generated, Diff: diff, Locked: locked}, nil
}

// LockState is the lock decision for one charge.
type LockState struct {
	ChargeID string `json:"charge_id"`
	Locked   bool   `json:"locked"`
	LockDate string `json:"lock_date,omitempty"`
	Dates    int    `json:"dates"`
}

// IsChargeLocked reads the charge's dates fresh from the store and applies the lock
// date.
func (s *Service) IsChargeLocked(ctx context.Context, chargeID string) (LockState, error) {
	facts, err := s.loadOne(ctx, chargeID)
	if err != nil {
		return LockState{}, err
	}
	persisted, err := s.store.LedgerEntriesByChargeIDs(ctx, []string{chargeID})
	if err != nil {
		return LockState{}, err
	}
	dates := ledger.ChargeDates(facts.Transactions, facts.Documents, persisted[chargeID])
	locked := ledger.IsChargeLocked(dates, s.lockDate)
	obs.ObserveLockCheck(locked)
	return LockState{ChargeID: chargeID, Locked: locked, LockDate: s.lockDate, Dates: len(dates)}, nil
}

// RegenerateLedger builds and persists a charge's ledger. The lock is checked against
// freshly read dates, including those of the new entries, right before the write.
func (s *Service) RegenerateLedger(ctx context.Context, chargeID string) ([]ledger.LedgerEntry, error) {
	const op = "accounting.regenerate"
	facts, err := s.loadOne(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	entries, err := s.build(ctx, facts)
	if err != nil {
		return nil, err
	}

	state, err := s.IsChargeLocked(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if state.Locked || ledger.IsChargeLocked(ledger.ChargeDates(nil, nil, entries), s.lockDate) {
		_ = audit.LogEvent(ctx, string(stream.EventLockRejected), map[string]any{
			"charge_id": chargeID,
			"lock_date": s.lockDate,
		})
		s.publish(ctx, stream.LedgerEvent{
			Type:     stream.EventLockRejected,
			ChargeID: chargeID,
			OwnerID:  facts.Charge.OwnerID,
			Kind:     facts.Charge.Kind.String(),
		})
		err := fault.Wrap(ErrChargeLocked, op, "charge_id", chargeID, "lock_date", s.lockDate)
		s.observeError(ctx, op, err)
		return nil, err
	}

	if err := s.store.ReplaceLedgerEntries(ctx, chargeID, entries); err != nil {
		return nil, fmt.Errorf("%s: persist charge %s: %w", op, chargeID, err)
	}
	_ = audit.LogEvent(ctx, string(stream.EventRegenerated), map[string]any{
		"charge_id": chargeID,
		"kind":      facts.Charge.Kind.String(),
		"entries":   len(entries),
	})
	s.publish(ctx, stream.LedgerEvent{
		Type:     stream.EventRegenerated,
		ChargeID: chargeID,
		OwnerID:  facts.Charge.OwnerID,
		Kind:     facts.Charge.Kind.String(),
		Entries:  len(entries),
		Clean:    true,
	})
	return entries, nil
}

// GenerateBalanceCharge builds a balance charge's entries and balance summary.
func (s *Service) GenerateBalanceCharge(ctx context.Context, chargeID string) ([]ledger.LedgerEntry, ledger.BalanceInfo, error) {
	facts, err := s.loadOne(ctx, chargeID)
	if err != nil {
		return nil, ledger.BalanceInfo{}, err
	}
	entries, info, err := s.builder.GenerateBalanceCharge(ctx, facts.Charge, facts.MiscExpenses)
	obs.ObserveLedgerGeneration(finance.KindBalance.String(), err)
	if err != nil {
		s.observeError(ctx, "accounting.balance_charge", err)
		return nil, ledger.BalanceInfo{}, err
	}
	return entries, info, nil
}

func (s *Service) loadOne(ctx context.Context, chargeID string) (ledger.ChargeFacts, error) {
	facts, err := store.LoadFacts(ctx, s.store, []string{chargeID})
	if err != nil {
		return ledger.ChargeFacts{}, err
	}
	f, ok := facts[chargeID]
	if !ok {
		return ledger.ChargeFacts{}, fmt.Errorf("charge %s: %w", chargeID, store.ErrNotFound)
	}
	return f, nil
}

func (s *Service) build(ctx context.Context, facts ledger.ChargeFacts) ([]ledger.LedgerEntry, error) {
	entries, err := s.builder.BuildChargeLedger(ctx, facts)
	obs.ObserveLedgerGeneration(facts.Charge.Kind.String(), err)
	if err != nil {
		s.observeError(ctx, "accounting.generate", err)
		return nil, err
	}
	return entries, nil
}

// observeError counts err and logs it; internal errors at error level, caller and
// data problems at warn.
func (s *Service) observeError(ctx context.Context, op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	class := fault.ClassOf(err)
	obs.ObserveError(class.String(), fault.NameOf(err))
	log := obs.FromContext(ctx)
	evt := log.Warn()
	if class == fault.Internal {
		evt = log.Error()
	}
	evt.Str("op", op).Str("class", class.String()).Err(err).Msg("accounting operation failed")
}

func (s *Service) publish(ctx context.Context, evt stream.LedgerEvent) {
	if s.events == nil {
		return
	}
	evt.RequestID = audit.RequestID(ctx)
	s.events.Publish(evt)
}
