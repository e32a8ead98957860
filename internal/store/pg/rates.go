package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
	"accounter.org/internal/rates"
)

// RateProvider reads daily rates quoted against the local currency and derives
// inverse and cross rates from them.
type RateProvider struct {
	db    *sql.DB
	local finance.Currency
}

var _ rates.Provider = (*RateProvider)(nil)

// NewRateProvider builds a provider over the exchange_rates table.
func NewRateProvider(db *sql.DB, local finance.Currency) *RateProvider {
	return &RateProvider{db: db, local: local}
}

// Rates returns the rate provider sharing this store's connection pool.
func (s *Store) Rates(local finance.Currency) *RateProvider {
	return NewRateProvider(s.db, local)
}

func (p *RateProvider) GetExchangeRate(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	if from == to {
		return one, nil
	}
	var wanted []string
	for _, c := range []finance.Currency{from, to} {
		if c != p.local {
			wanted = append(wanted, string(c))
		}
	}
	rows, err := p.db.QueryContext(ctx, `
		select currency, rate from exchange_rates
		where date = $1 and currency = any($2::text[])
	`, finance.Truncate(date), wanted)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	quotes := map[finance.Currency]decimal.Decimal{p.local: one}
	for rows.Next() {
		var (
			c string
			r decimal.Decimal
		)
		if err := rows.Scan(&c, &r); err != nil {
			return decimal.Zero, err
		}
		quotes[finance.Currency(c)] = r
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}

	fromLocal, ok := quotes[from]
	if !ok {
		return decimal.Zero, rates.Unavailable(from, to, date)
	}
	toLocal, ok := quotes[to]
	if !ok || toLocal.IsZero() {
		return decimal.Zero, rates.Unavailable(from, to, date)
	}
	if to == p.local {
		return fromLocal, nil
	}
	return fromLocal.DivRound(toLocal, 10), nil
}
