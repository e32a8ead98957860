package rates

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

// Cached memoizes a Provider by (from, to, date). Misses are not cached so a rate
// published later is picked up on the next call.
type Cached struct {
	next  Provider
	cache *cache.Cache
}

// NewCached wraps next with a TTL cache.
func NewCached(next Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *Cached) GetExchangeRate(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	key := string(from) + "/" + string(to) + "@" + finance.FormatDate(date)
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	rate, err := c.next.GetExchangeRate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.SetDefault(key, rate)
	return rate, nil
}

// Flush drops all cached rates.
func (c *Cached) Flush() { c.cache.Flush() }
