package fault

import (
	"errors"
	"fmt"
	"testing"
)

var (
	errBadInput = New(Validation, "bad input")
	errBadRow   = New(Data, "bad row")
)

func TestWrapIsAndClass(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(errBadRow, "ledger.build", "charge_id", "c1", "currency", "USD"))

	if !errors.Is(err, errBadRow) {
		t.Fatalf("expected errors.Is to find kind, got %v", err)
	}
	if errors.Is(err, errBadInput) {
		t.Fatalf("unexpected match with other kind")
	}
	if ClassOf(err) != Data {
		t.Fatalf("ClassOf=%v, want data", ClassOf(err))
	}
	if NameOf(err) != "bad row" {
		t.Fatalf("NameOf=%q", NameOf(err))
	}
	want := "outer: ledger.build: bad row (charge_id=c1, currency=USD)"
	if err.Error() != want {
		t.Fatalf("Error()=%q, want %q", err.Error(), want)
	}
}

func TestClassOfUnknownIsInternal(t *testing.T) {
	if got := ClassOf(errors.New("boom")); got != Internal {
		t.Fatalf("ClassOf=%v, want internal", got)
	}
	if NameOf(errors.New("boom")) != "unknown" {
		t.Fatal("expected unknown name")
	}
}

func TestWrapDropsOddField(t *testing.T) {
	e := Wrap(errBadInput, "", "only")
	if e.Fields != nil {
		t.Fatalf("expected no fields, got %v", e.Fields)
	}
	if e.Error() != "bad input" {
		t.Fatalf("Error()=%q", e.Error())
	}
}
