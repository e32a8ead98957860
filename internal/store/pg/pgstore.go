package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
	"accounter.org/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle (tests use sqlmock).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const chargeColumns = `id, owner_id, kind, tax_category_id, description`

func (s *Store) ChargesByIDs(ctx context.Context, ids []string) (map[string]finance.Charge, error) {
	out := make(map[string]finance.Charge, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `select `+chargeColumns+` from charges where id = any($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c      finance.Charge
			kind   string
			taxCat sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &kind, &taxCat, &c.Description); err != nil {
			return nil, err
		}
		if c.Kind, err = finance.ParseChargeKind(kind); err != nil {
			return nil, fmt.Errorf("charge %s: %w", c.ID, err)
		}
		c.TaxCategoryID = nullString(taxCat)
		out[c.ID] = c
	}
	return out, rows.Err()
}

const transactionColumns = `id, charge_id, owner_id, account_id, business_id, amount, currency,
	event_date, debit_date, debit_timestamp, currency_rate, is_fee, description`

func (s *Store) TransactionsByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.Transaction, error) {
	list, err := s.queryTransactions(ctx, `where charge_id = any($1::text[]) order by charge_id, id`, chargeIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]finance.Transaction)
	for _, t := range list {
		out[t.ChargeID] = append(out[t.ChargeID], t)
	}
	return out, nil
}

func (s *Store) TransactionsByIDs(ctx context.Context, ids []string) (map[string]finance.Transaction, error) {
	list, err := s.queryTransactions(ctx, `where id = any($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]finance.Transaction, len(list))
	for _, t := range list {
		out[t.ID] = t
	}
	return out, nil
}

func (s *Store) TransactionsByOwner(ctx context.Context, ownerID string) ([]finance.Transaction, error) {
	return s.queryTransactions(ctx, `where owner_id = $1 order by id`, ownerID)
}

func (s *Store) queryTransactions(ctx context.Context, where string, arg any) ([]finance.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `select `+transactionColumns+` from transactions `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []finance.Transaction
	for rows.Next() {
		var (
			t         finance.Transaction
			currency  string
			business  sql.NullString
			debitDate sql.NullTime
			debitTS   sql.NullTime
			rate      decimal.NullDecimal
		)
		if err := rows.Scan(&t.ID, &t.ChargeID, &t.OwnerID, &t.AccountID, &business, &t.Amount, &currency,
			&t.EventDate, &debitDate, &debitTS, &rate, &t.IsFee, &t.Description); err != nil {
			return nil, err
		}
		t.Currency = finance.Currency(currency)
		t.BusinessID = nullString(business)
		t.DebitDate = nullTime(debitDate)
		t.DebitTimestamp = nullTime(debitTS)
		t.CurrencyRate = nullDecimal(rate)
		res = append(res, t)
	}
	return res, rows.Err()
}

const documentColumns = `id, charge_id, owner_id, serial, total_amount, currency_code, vat_amount,
	document_type, date, creditor_id, debtor_id`

func (s *Store) DocumentsByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.Document, error) {
	list, err := s.queryDocuments(ctx, `where charge_id = any($1::text[]) order by charge_id, id`, chargeIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]finance.Document)
	for _, d := range list {
		out[d.ChargeID] = append(out[d.ChargeID], d)
	}
	return out, nil
}

func (s *Store) DocumentsByIDs(ctx context.Context, ids []string) (map[string]finance.Document, error) {
	list, err := s.queryDocuments(ctx, `where id = any($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]finance.Document, len(list))
	for _, d := range list {
		out[d.ID] = d
	}
	return out, nil
}

func (s *Store) DocumentsByOwner(ctx context.Context, ownerID string) ([]finance.Document, error) {
	return s.queryDocuments(ctx, `where owner_id = $1 order by id`, ownerID)
}

func (s *Store) queryDocuments(ctx context.Context, where string, arg any) ([]finance.Document, error) {
	rows, err := s.db.QueryContext(ctx, `select `+documentColumns+` from documents `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []finance.Document
	for rows.Next() {
		var (
			d        finance.Document
			total    decimal.NullDecimal
			vat      decimal.NullDecimal
			currency sql.NullString
			docType  string
		)
		if err := rows.Scan(&d.ID, &d.ChargeID, &d.OwnerID, &d.Serial, &total, &currency, &vat,
			&docType, &d.Date, &d.CreditorID, &d.DebtorID); err != nil {
			return nil, err
		}
		d.TotalAmount = nullDecimal(total)
		d.VatAmount = nullDecimal(vat)
		if currency.Valid {
			c := finance.Currency(currency.String)
			d.CurrencyCode = &c
		}
		d.Type = finance.DocumentType(docType)
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *Store) MiscExpensesByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]finance.MiscExpense, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, charge_id, creditor_id, debtor_id, amount, currency, invoice_date, value_date, description
		from misc_expenses
		where charge_id = any($1::text[])
		order by charge_id, id
	`, chargeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]finance.MiscExpense)
	for rows.Next() {
		var (
			m        finance.MiscExpense
			currency string
		)
		if err := rows.Scan(&m.ID, &m.ChargeID, &m.CreditorID, &m.DebtorID, &m.Amount, &currency,
			&m.InvoiceDate, &m.ValueDate, &m.Description); err != nil {
			return nil, err
		}
		m.Currency = finance.Currency(currency)
		out[m.ChargeID] = append(out[m.ChargeID], m)
	}
	return out, rows.Err()
}

const ledgerColumns = `id, charge_id, owner_id, currency, credit_account_id, debit_account_id,
	credit_amount_1, debit_amount_1, local_currency_credit_amount_1, local_currency_debit_amount_1,
	invoice_date, value_date, description, reference_1, currency_rate, is_creditor_counterparty`

func (s *Store) LedgerEntriesByChargeIDs(ctx context.Context, chargeIDs []string) (map[string][]ledger.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `select `+ledgerColumns+` from ledger_records where charge_id = any($1::text[]) order by charge_id, id`, chargeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]ledger.LedgerEntry)
	for rows.Next() {
		var (
			e                   ledger.LedgerEntry
			currency            string
			credit, debit       sql.NullString
			creditAmt, debitAmt decimal.NullDecimal
			desc, ref           sql.NullString
			rate                decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.ChargeID, &e.OwnerID, &currency, &credit, &debit,
			&creditAmt, &debitAmt, &e.LocalCurrencyCreditAmount1, &e.LocalCurrencyDebitAmount1,
			&e.InvoiceDate, &e.ValueDate, &desc, &ref, &rate, &e.IsCreditorCounterparty); err != nil {
			return nil, err
		}
		e.Currency = finance.Currency(currency)
		e.CreditAccountID = nullString(credit)
		e.DebitAccountID = nullString(debit)
		e.CreditAmount1 = nullDecimal(creditAmt)
		e.DebitAmount1 = nullDecimal(debitAmt)
		e.Description = nullString(desc)
		e.Reference1 = nullString(ref)
		e.CurrencyRate = nullDecimal(rate)
		out[e.ChargeID] = append(out[e.ChargeID], e)
	}
	return out, rows.Err()
}

// ReplaceLedgerEntries swaps a charge's ledger in one serializable transaction. The
// charge row is locked first so concurrent regenerations of the same charge queue up.
func (s *Store) ReplaceLedgerEntries(ctx context.Context, chargeID string, entries []ledger.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	if err := tx.QueryRowContext(ctx, `select 1 from charges where id=$1 for update`, chargeID).Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from ledger_records where charge_id=$1`, chargeID); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			insert into ledger_records(`+ledgerColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		`, e.ID, chargeID, e.OwnerID, string(e.Currency), e.CreditAccountID, e.DebitAccountID,
			e.CreditAmount1, e.DebitAmount1, e.LocalCurrencyCreditAmount1, e.LocalCurrencyDebitAmount1,
			e.InvoiceDate, e.ValueDate, e.Description, e.Reference1, e.CurrencyRate, e.IsCreditorCounterparty); err != nil {
			return fmt.Errorf("insert ledger record %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// --- helpers ---

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
