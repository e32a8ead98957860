package matching

import (
	"strconv"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
)

var (
	ErrMissingComponent = fault.New(fault.Validation, "missing confidence component")
	ErrOutOfRange       = fault.New(fault.Validation, "confidence component out of range")
)

var (
	amountWeight   = decimal.RequireFromString("0.40")
	currencyWeight = decimal.RequireFromString("0.20")
	businessWeight = decimal.RequireFromString("0.30")
	dateWeight     = decimal.RequireFromString("0.10")
)

// ConfidenceComponents are the per-dimension scores, each in [0,1]. A nil field is a
// missing component.
type ConfidenceComponents struct {
	Amount   *float64 `json:"amount"`
	Currency *float64 `json:"currency"`
	Business *float64 `json:"business"`
	Date     *float64 `json:"date"`
}

// Components builds a fully populated ConfidenceComponents.
func Components(amount, currency, business, date float64) ConfidenceComponents {
	return ConfidenceComponents{Amount: &amount, Currency: &currency, Business: &business, Date: &date}
}

// CalculateOverallConfidence combines the components with fixed weights
// (amount 0.40, currency 0.20, business 0.30, date 0.10) and rounds half-up to two
// decimals.
func CalculateOverallConfidence(c ConfidenceComponents) (float64, error) {
	parts := []struct {
		name   string
		value  *float64
		weight decimal.Decimal
	}{
		{"amount", c.Amount, amountWeight},
		{"currency", c.Currency, currencyWeight},
		{"business", c.Business, businessWeight},
		{"date", c.Date, dateWeight},
	}

	total := decimal.Zero
	for _, p := range parts {
		if p.value == nil {
			return 0, fault.Wrap(ErrMissingComponent, "matching.confidence", "component", p.name)
		}
		v := *p.value
		// written so that NaN fails too
		if !(v >= 0 && v <= 1) {
			return 0, fault.Wrap(ErrOutOfRange, "matching.confidence",
				"component", p.name, "value", strconv.FormatFloat(v, 'g', -1, 64))
		}
		total = total.Add(decimal.NewFromFloat(v).Mul(p.weight))
	}
	return total.Round(2).InexactFloat64(), nil
}
