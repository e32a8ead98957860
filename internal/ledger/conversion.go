package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/fault"
	"accounter.org/internal/finance"
	"accounter.org/internal/rates"
)

// ConversionFee is the bank's markup on a currency conversion.
type ConversionFee struct {
	// Currency is the quote currency Amount is expressed in.
	Currency    finance.Currency `json:"currency"`
	Amount      decimal.Decimal  `json:"amount"`
	LocalAmount decimal.Decimal  `json:"local_amount"`
}

var (
	tenMillion   = decimal.NewFromInt(10_000_000)
	minPrecision = decimal.RequireFromString("0.005")
)

// ConversionFeeCalculator compares the bank rate carried by the base or quote entry
// with officialRate (quote units per base unit) and returns the fee in the quote
// currency. When the quote currency is not local the fee is also projected into the
// local currency with localCurrencyRate, or with 1/officialRate when the base
// currency is the local one.
func ConversionFeeCalculator(base, quote LedgerEntry, officialRate decimal.Decimal, localCurrencyRate *decimal.Decimal, localCurrency finance.Currency) (ConversionFee, error) {
	const op = "ledger.conversion_fee"
	if base.Currency == quote.Currency {
		return ConversionFee{}, fault.Wrap(ErrSameCurrency, op, "currency", string(base.Currency))
	}

	baseRate, quoteRate := nonZero(base.CurrencyRate), nonZero(quote.CurrencyRate)
	var bankRate decimal.Decimal
	switch {
	case baseRate == nil && quoteRate == nil:
		return ConversionFee{}, fault.Wrap(ErrMissingRate, op, "base", string(base.Currency), "quote", string(quote.Currency))
	case baseRate != nil && quoteRate != nil && !baseRate.Equal(*quoteRate):
		return ConversionFee{}, fault.Wrap(ErrMismatchedRates, op,
			"base_rate", baseRate.String(), "quote_rate", quoteRate.String())
	case baseRate != nil:
		bankRate = *baseRate
	default:
		bankRate = *quoteRate
	}

	baseAmount, ok := sideAmount(base, localCurrency)
	if !ok {
		return ConversionFee{}, fault.Wrap(ErrMissingAmount, op, "side", "base", "currency", string(base.Currency))
	}
	quoteAmount, ok := sideAmount(quote, localCurrency)
	if !ok {
		return ConversionFee{}, fault.Wrap(ErrMissingAmount, op, "side", "quote", "currency", string(quote.Currency))
	}

	bankConverted := baseAmount.Mul(bankRate)
	tolerance := decimal.Max(baseAmount.Div(tenMillion), minPrecision)
	if bankConverted.Sub(quoteAmount).Abs().GreaterThan(tolerance) {
		return ConversionFee{}, fault.Wrap(ErrAmountMismatch, op,
			"base_amount", baseAmount.String(), "bank_rate", bankRate.String(),
			"quote_amount", quoteAmount.String(), "base", string(base.Currency), "quote", string(quote.Currency))
	}

	officialConverted := baseAmount.Mul(officialRate)
	fee := officialConverted.Sub(bankConverted)

	if quote.Currency == localCurrency {
		return ConversionFee{Currency: quote.Currency, Amount: fee, LocalAmount: fee}, nil
	}
	var localRate decimal.Decimal
	switch {
	case localCurrencyRate != nil && !localCurrencyRate.IsZero():
		localRate = *localCurrencyRate
	case base.Currency == localCurrency && !officialRate.IsZero():
		localRate = decimal.NewFromInt(1).DivRound(officialRate, 16)
	default:
		return ConversionFee{}, fault.Wrap(ErrMissingLocalRate, op, "quote", string(quote.Currency))
	}
	return ConversionFee{Currency: quote.Currency, Amount: fee, LocalAmount: fee.Mul(localRate)}, nil
}

// sideAmount is the amount of an entry in its own currency.
func sideAmount(e LedgerEntry, localCurrency finance.Currency) (decimal.Decimal, bool) {
	if e.Currency == localCurrency {
		return e.LocalCurrencyCreditAmount1, true
	}
	if e.CreditAmount1 == nil {
		return decimal.Zero, false
	}
	return *e.CreditAmount1, true
}

func nonZero(d *decimal.Decimal) *decimal.Decimal {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}

// conversionEntries books both legs against the conversion transit account and adds
// the fee entry that settles the transit account.
func (b *Builder) conversionEntries(ctx context.Context, facts ChargeFacts) ([]LedgerEntry, error) {
	const op = "ledger.conversion"
	charge := facts.Charge

	var legs []finance.Transaction
	for _, tx := range sortedTransactions(facts.Transactions) {
		if !tx.IsFee {
			legs = append(legs, tx)
		}
	}
	if len(legs) != 2 || legs[0].Currency == legs[1].Currency || legs[0].Amount.Sign()*legs[1].Amount.Sign() >= 0 {
		return nil, fault.Wrap(ErrInvalidConversion, op, "charge_id", charge.ID, "legs", fmt.Sprint(len(legs)))
	}
	baseTx, quoteTx := legs[0], legs[1]
	if baseTx.Amount.IsPositive() {
		baseTx, quoteTx = quoteTx, baseTx
	}

	baseEntry, err := b.bankEntry(ctx, charge, baseTx, b.Accounts.ConversionTransit, false)
	if err != nil {
		return nil, err
	}
	quoteEntry, err := b.bankEntry(ctx, charge, quoteTx, b.Accounts.ConversionTransit, false)
	if err != nil {
		return nil, err
	}
	// The calculator reads the bank rate; the stored legs keep their rate to local currency.
	baseCalc, quoteCalc := baseEntry, quoteEntry
	baseCalc.CurrencyRate = nonZero(baseTx.CurrencyRate)
	quoteCalc.CurrencyRate = nonZero(quoteTx.CurrencyRate)

	valueDate := finance.Truncate(quoteTx.ValueDate())
	officialRate, err := b.rate(ctx, op, charge.ID, baseTx.Currency, quoteTx.Currency, valueDate)
	if err != nil {
		return nil, err
	}
	var localRate *decimal.Decimal
	if quoteTx.Currency != b.LocalCurrency {
		r, err := b.rate(ctx, op, charge.ID, quoteTx.Currency, b.LocalCurrency, valueDate)
		switch {
		case err == nil:
			localRate = &r
		case !errors.Is(err, ErrMissingExchangeRate):
			return nil, err
		}
	}

	fee, err := ConversionFeeCalculator(baseCalc, quoteCalc, officialRate, localRate, b.LocalCurrency)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			if fe.Fields == nil {
				fe.Fields = map[string]string{}
			}
			fe.Fields["charge_id"] = charge.ID
		}
		return nil, err
	}

	entries := []LedgerEntry{baseEntry, quoteEntry}
	localFee := fee.LocalAmount.Round(2)
	if !localFee.IsZero() {
		credit, debit := b.Accounts.ConversionTransit, b.Accounts.ConversionFee
		if localFee.IsNegative() {
			credit, debit = debit, credit
		}
		feeEntry := LedgerEntry{
			Currency:                   fee.Currency,
			CreditAccountID:            strPtr(credit),
			DebitAccountID:             strPtr(debit),
			LocalCurrencyCreditAmount1: localFee.Abs(),
			LocalCurrencyDebitAmount1:  localFee.Abs(),
			InvoiceDate:                valueDate,
			ValueDate:                  valueDate,
			Description:                strPtr("conversion fee"),
			CurrencyRate:               decPtr(officialRate),
		}
		if fee.Currency != b.LocalCurrency {
			abs := fee.Amount.Abs()
			feeEntry.CreditAmount1 = decPtr(abs)
			feeEntry.DebitAmount1 = decPtr(abs)
		}
		entries = append(entries, feeEntry)
	}

	fees, err := b.feeEntries(ctx, facts)
	if err != nil {
		return nil, err
	}
	return append(entries, fees...), nil
}

func (b *Builder) rate(ctx context.Context, op, chargeID string, from, to finance.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if b.Rates == nil {
		return decimal.Zero, fault.Wrap(ErrMissingExchangeRate, op, "charge_id", chargeID, "from", string(from), "to", string(to), "date", finance.FormatDate(date))
	}
	r, err := b.Rates.GetExchangeRate(ctx, from, to, date)
	if err != nil {
		if errors.Is(err, rates.ErrRateUnavailable) {
			return decimal.Zero, fault.Wrap(ErrMissingExchangeRate, op, "charge_id", chargeID, "from", string(from), "to", string(to), "date", finance.FormatDate(date))
		}
		return decimal.Zero, fmt.Errorf("%s: exchange rate %s/%s: %w", op, from, to, err)
	}
	return r, nil
}
