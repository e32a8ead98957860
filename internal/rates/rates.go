// Package rates provides exchange rates to the ledger builder.
package rates

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
)

// ErrRateUnavailable is returned when no rate exists for the requested date.
var ErrRateUnavailable = fault.New(fault.Data, "exchange rate unavailable")

// Provider returns how many units of `to` one unit of `from` buys on date.
type Provider interface {
	GetExchangeRate(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error)

func (f ProviderFunc) GetExchangeRate(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	return f(ctx, from, to, date)
}

// Unavailable builds the standard not-found error.
func Unavailable(from, to finance.Currency, date time.Time) error {
	return fault.Wrap(ErrRateUnavailable, "rates.get",
		"from", string(from), "to", string(to), "date", finance.FormatDate(date))
}

// Static is an in-memory provider keyed by date. Inverse rates are derived.
type Static struct {
	mu    sync.RWMutex
	rates map[staticKey]decimal.Decimal
}

type staticKey struct {
	from, to finance.Currency
	date     string
}

// NewStatic creates an empty Static provider.
func NewStatic() *Static {
	return &Static{rates: make(map[staticKey]decimal.Decimal)}
}

// Set records a rate. Chainable for fixtures.
func (s *Static) Set(from, to finance.Currency, date time.Time, rate decimal.Decimal) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[staticKey{from, to, finance.FormatDate(date)}] = rate
	return s
}

func (s *Static) GetExchangeRate(_ context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	day := finance.FormatDate(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[staticKey{from, to, day}]; ok {
		return r, nil
	}
	if r, ok := s.rates[staticKey{to, from, day}]; ok && !r.IsZero() {
		return decimal.NewFromInt(1).DivRound(r, 10), nil
	}
	return decimal.Zero, Unavailable(from, to, date)
}
