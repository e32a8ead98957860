package accounting

import (
	"accounter.org/internal/config"
	"accounter.org/internal/ledger"
	"accounter.org/internal/matching"
	"accounter.org/internal/rates"
	"accounter.org/internal/store"
)

// FromConfig assembles a Service over st. source is the authoritative rate table; it
// is wrapped with the configured fallback walk and cache.
func FromConfig(cfg *config.Config, st store.Store, source rates.Provider, opts ...Option) *Service {
	provider := rates.NewCached(rates.WithFallback(source, cfg.RateFallbackDays), cfg.RateCacheTTL)
	builder := ledger.NewBuilder(cfg.LocalCurrency, provider, cfg.Accounts)
	base := []Option{
		WithLockDate(cfg.LedgerLockDate),
		WithMatcher(matching.NewMatcher(matching.WithWindowMonths(cfg.MatchWindowMonths))),
	}
	return New(st, builder, append(base, opts...)...)
}
