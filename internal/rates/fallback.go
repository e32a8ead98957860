package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

// Fallback retries earlier dates when a rate is missing (weekends, bank holidays).
// This is a caller policy; the ledger builder itself never walks dates.
type Fallback struct {
	next    Provider
	maxDays int
}

// WithFallback wraps next, looking back up to maxDays days.
func WithFallback(next Provider, maxDays int) *Fallback {
	return &Fallback{next: next, maxDays: maxDays}
}

func (f *Fallback) GetExchangeRate(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	day := finance.Truncate(date)
	for i := 0; i <= f.maxDays; i++ {
		rate, err := f.next.GetExchangeRate(ctx, from, to, day.AddDate(0, 0, -i))
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, ErrRateUnavailable) {
			return decimal.Zero, err
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
	}
	return decimal.Zero, Unavailable(from, to, date)
}
