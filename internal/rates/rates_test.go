package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStaticDirectAndInverse(t *testing.T) {
	day := finance.Date(2024, time.March, 4)
	s := NewStatic().Set(finance.USD, finance.ILS, day, d("3.5"))
	ctx := context.Background()

	got, err := s.GetExchangeRate(ctx, finance.USD, finance.ILS, day)
	if err != nil || !got.Equal(d("3.5")) {
		t.Fatalf("direct: %s, %v", got, err)
	}
	inv, err := s.GetExchangeRate(ctx, finance.ILS, finance.USD, day)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.Round(4).Equal(d("0.2857")) {
		t.Fatalf("inverse: %s", inv)
	}
	same, err := s.GetExchangeRate(ctx, finance.EUR, finance.EUR, day)
	if err != nil || !same.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("identity: %s, %v", same, err)
	}
	if _, err := s.GetExchangeRate(ctx, finance.USD, finance.ILS, day.AddDate(0, 0, 1)); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestCachedHitsUnderlyingOnce(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(ctx context.Context, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
		calls++
		if from == finance.EUR {
			return decimal.Zero, Unavailable(from, to, date)
		}
		return d("3.7"), nil
	})
	c := NewCached(next, time.Minute)
	day := finance.Date(2024, time.January, 2)
	for i := 0; i < 3; i++ {
		r, err := c.GetExchangeRate(context.Background(), finance.USD, finance.ILS, day)
		if err != nil || !r.Equal(d("3.7")) {
			t.Fatalf("got %s, %v", r, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 underlying call, got %d", calls)
	}

	for i := 0; i < 2; i++ {
		_, _ = c.GetExchangeRate(context.Background(), finance.EUR, finance.ILS, day)
	}
	if calls != 3 {
		t.Fatalf("misses must not be cached, calls=%d", calls)
	}

	c.Flush()
	_, _ = c.GetExchangeRate(context.Background(), finance.USD, finance.ILS, day)
	if calls != 4 {
		t.Fatalf("expected refetch after flush, calls=%d", calls)
	}
}

func TestFallbackWalksBack(t *testing.T) {
	friday := finance.Date(2024, time.March, 1)
	s := NewStatic().Set(finance.USD, finance.ILS, friday, d("3.6"))
	f := WithFallback(s, 3)

	sunday := finance.Date(2024, time.March, 3)
	r, err := f.GetExchangeRate(context.Background(), finance.USD, finance.ILS, sunday)
	if err != nil || !r.Equal(d("3.6")) {
		t.Fatalf("got %s, %v", r, err)
	}

	tooLate := finance.Date(2024, time.March, 8)
	if _, err := f.GetExchangeRate(context.Background(), finance.USD, finance.ILS, tooLate); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestFallbackPassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("db down")
	next := ProviderFunc(func(context.Context, finance.Currency, finance.Currency, time.Time) (decimal.Decimal, error) {
		return decimal.Zero, boom
	})
	if _, err := WithFallback(next, 5).GetExchangeRate(context.Background(), finance.USD, finance.ILS, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}
