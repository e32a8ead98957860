package ledger

import (
	"testing"
	"time"

	"accounter.org/internal/finance"
)

func TestIsChargeLocked(t *testing.T) {
	dates := []string{"2024-03-14", "2024-01-31", "2024-02-10"}
	cases := []struct {
		name     string
		dates    []string
		lockDate string
		want     bool
	}{
		{"no lock date", dates, "", false},
		{"no dates", nil, "2030-01-01", false},
		{"lock before min", dates, "2024-01-30", false},
		{"lock equals min", dates, "2024-01-31", true},
		{"lock after min", dates, "2024-02-01", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsChargeLocked(tc.dates, tc.lockDate); got != tc.want {
				t.Fatalf("IsChargeLocked(%v, %q)=%v, want %v", tc.dates, tc.lockDate, got, tc.want)
			}
		})
	}
}

func TestChargeDates(t *testing.T) {
	debitTS := time.Date(2024, time.March, 2, 23, 30, 0, 0, time.UTC)
	debitDate := finance.Date(2024, time.March, 5)
	txns := []finance.Transaction{
		{ID: "t1", EventDate: finance.Date(2024, time.March, 1), DebitDate: &debitDate, DebitTimestamp: &debitTS},
		{ID: "t2", EventDate: finance.Date(2024, time.April, 1), DebitDate: &debitDate},
	}
	docs := []finance.Document{{ID: "d1", Date: finance.Date(2024, time.February, 20)}, {ID: "d2"}}
	entries := []LedgerEntry{{ValueDate: finance.Date(2024, time.March, 3), InvoiceDate: finance.Date(2024, time.February, 28)}}

	got := ChargeDates(txns, docs, entries)
	want := []string{"2024-03-03", "2024-02-28", "2024-03-01", "2024-03-02", "2024-04-01", "2024-03-05", "2024-02-20"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !IsChargeLocked(got, "2024-02-20") || IsChargeLocked(got, "2024-02-19") {
		t.Fatal("document date should anchor the lock")
	}
}

func TestValidateLockDate(t *testing.T) {
	for _, ok := range []string{"", "2024-12-31"} {
		if err := ValidateLockDate(ok); err != nil {
			t.Fatalf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"2024-13-01", "31/12/2024", "2024-1-1"} {
		if err := ValidateLockDate(bad); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}
