package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/accounting"
	"accounter.org/internal/finance"
	"accounter.org/internal/ledger"
	"accounter.org/internal/rates"
	"accounter.org/internal/store"
)

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func useMemoryService(t *testing.T, opts ...accounting.Option) *store.InMemory {
	t.Helper()
	day := finance.Date(2024, time.March, 14)
	cur := finance.ILS
	total, vat := dec("1170"), dec("170")

	st := store.NewInMemory()
	st.PutCharge(finance.Charge{ID: "c-1", OwnerID: "owner", Kind: finance.KindCommon, TaxCategoryID: strPtr("acc-income")})
	st.PutDocument(finance.Document{
		ID: "d-1", ChargeID: "c-1", OwnerID: "owner", TotalAmount: &total, CurrencyCode: &cur, VatAmount: &vat,
		Type: finance.Invoice, Date: day, CreditorID: "owner", DebtorID: "biz",
	})
	st.PutTransaction(finance.Transaction{
		ID: "t-1", ChargeID: "c-1", OwnerID: "owner", AccountID: "bank", BusinessID: strPtr("biz"),
		Amount: dec("1170"), Currency: finance.ILS, EventDate: day,
	})
	open := dec("-300")
	st.PutDocument(finance.Document{
		ID: "d-2", OwnerID: "owner", TotalAmount: &open, CurrencyCode: &cur, Type: finance.Invoice,
		Date: day, CreditorID: "biz", DebtorID: "owner",
	})
	st.PutTransaction(finance.Transaction{
		ID: "t-2", OwnerID: "owner", AccountID: "bank", BusinessID: strPtr("biz"),
		Amount: dec("-300"), Currency: finance.ILS, EventDate: day,
	})

	builder := ledger.NewBuilder(finance.ILS, rates.NewStatic(), ledger.Accounts{
		FeeExpense: "fees", ConversionFee: "conv-fee", ConversionTransit: "conv-transit",
		InternalTransferTransit: "transfer-transit", InputVAT: "vat-in", OutputVAT: "vat-out",
	})
	svc := accounting.New(st, builder, opts...)

	prev := serviceFactory
	serviceFactory = func(context.Context) (*accounting.Service, func(), error) {
		return svc, func() {}, nil
	}
	t.Cleanup(func() { serviceFactory = prev })
	return st
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	asJSON, matchMin, matchLimit = false, 0, 10
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateReportsDiffThenClean(t *testing.T) {
	useMemoryService(t)

	out, err := run(t, "validate", "c-1")
	if err == nil || !strings.Contains(out, "c-1: differs (0 matching, 0 changed, 0 deleted, 3 new)") {
		t.Fatalf("expected differing ledger, got %q, %v", out, err)
	}

	if out, err := run(t, "regenerate", "c-1"); err != nil || !strings.Contains(out, "3 entries written") {
		t.Fatalf("regenerate: %q, %v", out, err)
	}

	out, err = run(t, "validate", "c-1", "--json")
	if err != nil {
		t.Fatalf("expected clean ledger: %v", err)
	}
	var reports []validateReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reports) != 1 || !reports[0].Clean || reports[0].Matches != 3 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
}

func TestValidateUnknownCharge(t *testing.T) {
	useMemoryService(t)
	out, err := run(t, "validate", "nope")
	if err == nil || !strings.Contains(out, "nope: error:") {
		t.Fatalf("expected per-charge error, got %q, %v", out, err)
	}
}

func TestLockCommand(t *testing.T) {
	useMemoryService(t, accounting.WithLockDate("2024-06-30"))
	out, err := run(t, "lock", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "c-1: locked") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := run(t, "regenerate", "c-1"); err == nil {
		t.Fatal("expected locked charge to be refused")
	}
}

func TestMatchCommand(t *testing.T) {
	useMemoryService(t)
	out, err := run(t, "match", "transaction", "t-2", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var cands []struct {
		DocumentID string  `json:"document_id"`
		Overall    float64 `json:"overall"`
	}
	if err := json.Unmarshal([]byte(out), &cands); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cands) == 0 || cands[0].DocumentID != "d-2" {
		t.Fatalf("unexpected candidates %+v", cands)
	}

	out, err = run(t, "match", "document", "d-2", "--limit", "1")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[1], "t-2") {
		t.Fatalf("unexpected table %q", out)
	}

	if _, err := run(t, "match", "charge", "c-1"); err == nil {
		t.Fatal("expected unknown anchor kind error")
	}
}
