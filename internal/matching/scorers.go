package matching

import (
	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
)

// Side is the comparable view of one side of a candidate pair.
type Side struct {
	Amount     decimal.Decimal
	Currency   finance.Currency
	BusinessID string // empty when unknown
}

// Scorers are the pluggable per-dimension heuristics. Each must return a value in
// [0,1]; anything else surfaces as ErrOutOfRange from the matcher.
type Scorers struct {
	Amount   func(anchor, candidate Side) float64
	Currency func(anchor, candidate Side) float64
	Business func(anchor, candidate Side) float64
	Date     func(days int) float64
}

// DefaultScorers returns the built-in heuristics.
func DefaultScorers() Scorers {
	return Scorers{
		Amount:   AmountScore,
		Currency: CurrencyScore,
		Business: BusinessScore,
		Date:     DateScore,
	}
}

var (
	exactTolerance = decimal.RequireFromString("0.01")
	onePercent     = decimal.RequireFromString("0.01")
	fivePercent    = decimal.RequireFromString("0.05")
	twentyPercent  = decimal.RequireFromString("0.20")
)

// AmountScore compares signed amounts. Amounts in different currencies or with
// opposite signs are not comparable and score 0.
func AmountScore(anchor, candidate Side) float64 {
	if anchor.Currency != candidate.Currency {
		return 0
	}
	a, c := anchor.Amount, candidate.Amount
	diff := a.Sub(c).Abs()
	if diff.LessThan(exactTolerance) {
		return 1
	}
	if a.Sign()*c.Sign() < 0 {
		return 0
	}
	base := decimal.Max(a.Abs(), c.Abs())
	rel := diff.Div(base)
	switch {
	case rel.LessThanOrEqual(onePercent):
		return 0.9
	case rel.LessThanOrEqual(fivePercent):
		return 0.7
	case rel.LessThanOrEqual(twentyPercent):
		return 0.4
	}
	return 0
}

// CurrencyScore is 1 for equal currencies. Different currencies are convertible, so
// they keep a small score rather than disqualifying the pair.
func CurrencyScore(anchor, candidate Side) float64 {
	if anchor.Currency == candidate.Currency {
		return 1
	}
	return 0.2
}

// BusinessScore is 1 on counterparty identity, 0 on a known mismatch and 0.5 when
// either side does not know its counterparty.
func BusinessScore(anchor, candidate Side) float64 {
	switch {
	case anchor.BusinessID == "" || candidate.BusinessID == "":
		return 0.5
	case anchor.BusinessID == candidate.BusinessID:
		return 1
	}
	return 0
}

// DateScore decays with the distance in days.
func DateScore(days int) float64 {
	switch {
	case days <= 0:
		return 1
	case days <= 3:
		return 0.9
	case days <= 7:
		return 0.75
	case days <= 30:
		return 0.5
	case days <= 90:
		return 0.25
	}
	return 0.1
}
