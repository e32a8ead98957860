package pg

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
	"accounter.org/internal/rates"
	"accounter.org/internal/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

// arrayConverter lets []string arguments through the way the pgx driver accepts them.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

var day = time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

func TestChargesByIDsBindsRawIDs(t *testing.T) {
	s, mock := newMock(t)
	ids := []string{`b"c`, `d\e`, "f,g"}
	mock.ExpectQuery("from charges where id = any").
		WithArgs(ids).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "kind", "tax_category_id", "description"}).
			AddRow(`b"c`, "o1", "common", nil, ""))

	got, err := s.ChargesByIDs(context.Background(), ids)
	if err != nil {
		t.Fatalf("ChargesByIDs: %v", err)
	}
	if _, ok := got[`b"c`]; !ok || len(got) != 1 {
		t.Fatalf("unexpected charges: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChargesByIDs(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select id, owner_id, kind, tax_category_id, description from charges where id = any").
		WithArgs([]string{"c1", "c2"}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "kind", "tax_category_id", "description"}).
			AddRow("c1", "o1", "conversion", nil, "fx").
			AddRow("c2", "o1", "common", "acc-income", ""))

	got, err := s.ChargesByIDs(context.Background(), []string{"c1", "c2"})
	if err != nil {
		t.Fatalf("ChargesByIDs: %v", err)
	}
	if got["c1"].Kind != finance.KindConversion || got["c1"].TaxCategoryID != nil {
		t.Fatalf("unexpected c1: %+v", got["c1"])
	}
	if got["c2"].TaxCategoryID == nil || *got["c2"].TaxCategoryID != "acc-income" {
		t.Fatalf("unexpected c2: %+v", got["c2"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChargesByIDsEmptySkipsQuery(t *testing.T) {
	s, mock := newMock(t)
	got, err := s.ChargesByIDs(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestTransactionsByChargeIDs(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "charge_id", "owner_id", "account_id", "business_id", "amount", "currency",
		"event_date", "debit_date", "debit_timestamp", "currency_rate", "is_fee", "description"}
	mock.ExpectQuery("from transactions where charge_id = any").
		WithArgs([]string{"c1"}).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", "c1", "o1", "bank", "biz", "-3700.00", "ILS", day, day, nil, nil, false, "").
			AddRow("t2", "c1", "o1", "bank-usd", nil, "1000", "USD", day, nil, day, "3.7", false, "fx in"))

	got, err := s.TransactionsByChargeIDs(context.Background(), []string{"c1"})
	if err != nil {
		t.Fatalf("TransactionsByChargeIDs: %v", err)
	}
	list := got["c1"]
	if len(list) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(list))
	}
	if !list[0].Amount.Equal(decimal.NewFromInt(-3700)) || *list[0].BusinessID != "biz" || list[0].DebitDate == nil {
		t.Fatalf("unexpected t1: %+v", list[0])
	}
	if list[1].BusinessID != nil || list[1].CurrencyRate == nil || list[1].CurrencyRate.String() != "3.7" {
		t.Fatalf("unexpected t2: %+v", list[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentsByOwner(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "charge_id", "owner_id", "serial", "total_amount", "currency_code", "vat_amount",
		"document_type", "date", "creditor_id", "debtor_id"}
	mock.ExpectQuery("from documents where owner_id = \\$1").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("d1", "c1", "o1", "INV-1", "1170", "ILS", "170", "INVOICE", day, "o1", "biz").
			AddRow("d2", "c1", "o1", "", nil, nil, nil, "UNPROCESSED", day, "biz", "o1"))

	got, err := s.DocumentsByOwner(context.Background(), "o1")
	if err != nil {
		t.Fatalf("DocumentsByOwner: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
	if *got[0].CurrencyCode != finance.ILS || !got[0].VatAmount.Equal(decimal.NewFromInt(170)) || got[0].Type != finance.Invoice {
		t.Fatalf("unexpected d1: %+v", got[0])
	}
	if got[1].TotalAmount != nil || got[1].CurrencyCode != nil {
		t.Fatalf("unexpected d2: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMiscExpensesAndLedgerEntries(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from misc_expenses").
		WithArgs([]string{"c1"}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "charge_id", "creditor_id", "debtor_id", "amount", "currency", "invoice_date", "value_date", "description"}).
			AddRow("m1", "c1", "o1", "biz", "-50", "ILS", day, day, "adj"))
	ledgerCols := []string{"id", "charge_id", "owner_id", "currency", "credit_account_id", "debit_account_id",
		"credit_amount_1", "debit_amount_1", "local_currency_credit_amount_1", "local_currency_debit_amount_1",
		"invoice_date", "value_date", "description", "reference_1", "currency_rate", "is_creditor_counterparty"}
	mock.ExpectQuery("from ledger_records where charge_id = any").
		WithArgs([]string{"c1"}).
		WillReturnRows(sqlmock.NewRows(ledgerCols).
			AddRow("e1", "c1", "o1", "USD", "biz", "bank", "100", "100", "370.00", "370.00", day, day, nil, "t1", "3.7", true))

	misc, err := s.MiscExpensesByChargeIDs(context.Background(), []string{"c1"})
	if err != nil {
		t.Fatalf("MiscExpensesByChargeIDs: %v", err)
	}
	if len(misc["c1"]) != 1 || misc["c1"][0].Currency != finance.ILS {
		t.Fatalf("unexpected misc: %+v", misc)
	}

	entries, err := s.LedgerEntriesByChargeIDs(context.Background(), []string{"c1"})
	if err != nil {
		t.Fatalf("LedgerEntriesByChargeIDs: %v", err)
	}
	e := entries["c1"][0]
	if !e.IsBalanced() || *e.CreditAccountID != "biz" || e.Description != nil || *e.Reference1 != "t1" || !e.IsCreditorCounterparty {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceLedgerEntries(t *testing.T) {
	s, mock := newMock(t)
	amt := decimal.NewFromInt(100)
	credit, debit := "biz", "bank"
	entries := []ledger.LedgerEntry{{
		ID: "e1", ChargeID: "c1", OwnerID: "o1", Currency: finance.ILS,
		CreditAccountID: &credit, DebitAccountID: &debit,
		LocalCurrencyCreditAmount1: amt, LocalCurrencyDebitAmount1: amt,
		InvoiceDate: day, ValueDate: day,
	}}

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from charges where id=\\$1 for update").WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("delete from ledger_records where charge_id=\\$1").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("insert into ledger_records").
		WithArgs("e1", "c1", "o1", "ILS", "biz", "bank", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), day, day, nil, nil, nil, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.ReplaceLedgerEntries(context.Background(), "c1", entries); err != nil {
		t.Fatalf("ReplaceLedgerEntries: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceLedgerEntriesRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from charges").WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	err := s.ReplaceLedgerEntries(context.Background(), "missing", nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	boom := errors.New("serialization failure")
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from charges").WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("delete from ledger_records").WithArgs("c1").WillReturnError(boom)
	mock.ExpectRollback()
	if err := s.ReplaceLedgerEntries(context.Background(), "c1", nil); !errors.Is(err, boom) {
		t.Fatalf("expected delete error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRateProvider(t *testing.T) {
	s, mock := newMock(t)
	p := s.Rates(finance.ILS)
	ctx := context.Background()

	mock.ExpectQuery("from exchange_rates").
		WithArgs(day, []string{"USD"}).
		WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("USD", "3.6"))
	r, err := p.GetExchangeRate(ctx, finance.USD, finance.ILS, day)
	if err != nil || r.String() != "3.6" {
		t.Fatalf("USD/ILS: %v %v", r, err)
	}

	mock.ExpectQuery("from exchange_rates").
		WithArgs(day, []string{"EUR", "USD"}).
		WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("EUR", "4").AddRow("USD", "3.2"))
	r, err = p.GetExchangeRate(ctx, finance.EUR, finance.USD, day)
	if err != nil || r.String() != "1.25" {
		t.Fatalf("EUR/USD cross: %v %v", r, err)
	}

	mock.ExpectQuery("from exchange_rates").
		WithArgs(day, []string{"USD"}).
		WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("USD", "4"))
	r, err = p.GetExchangeRate(ctx, finance.ILS, finance.USD, day)
	if err != nil || r.String() != "0.25" {
		t.Fatalf("ILS/USD inverse: %v %v", r, err)
	}

	mock.ExpectQuery("from exchange_rates").
		WithArgs(day, []string{"GBP"}).
		WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}))
	if _, err := p.GetExchangeRate(ctx, finance.GBP, finance.ILS, day); !errors.Is(err, rates.ErrRateUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	if r, err := p.GetExchangeRate(ctx, finance.USD, finance.USD, day); err != nil || !r.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("identity rate: %v %v", r, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
