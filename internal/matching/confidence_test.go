package matching

import (
	"errors"
	"math"
	"testing"
)

func TestCalculateOverallConfidence(t *testing.T) {
	got, err := CalculateOverallConfidence(Components(1, 1, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.0 {
		t.Fatalf("all ones = %v, want 1", got)
	}

	got, err = CalculateOverallConfidence(Components(0.9, 1.0, 0.5, 0.8))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.79 {
		t.Fatalf("weighted = %v, want 0.79", got)
	}

	got, err = CalculateOverallConfidence(Components(0, 0, 0, 0))
	if err != nil || got != 0 {
		t.Fatalf("all zeros = %v, %v", got, err)
	}
}

func TestCalculateOverallConfidenceRoundsHalfUp(t *testing.T) {
	// 0.4*0.5 + 0.2*0 + 0.3*0.15 + 0.1*0 = 0.245
	got, err := CalculateOverallConfidence(Components(0.5, 0, 0.15, 0))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.25 {
		t.Fatalf("got %v, want 0.25", got)
	}
}

func TestCalculateOverallConfidenceOutOfRange(t *testing.T) {
	bad := []ConfidenceComponents{
		Components(1.01, 1, 1, 1),
		Components(1, -0.01, 1, 1),
		Components(1, 1, 2, 1),
		Components(1, 1, 1, math.NaN()),
	}
	for i, c := range bad {
		if _, err := CalculateOverallConfidence(c); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("case %d: expected ErrOutOfRange, got %v", i, err)
		}
	}
}

func TestCalculateOverallConfidenceMissing(t *testing.T) {
	one := 1.0
	cases := []ConfidenceComponents{
		{Currency: &one, Business: &one, Date: &one},
		{Amount: &one, Business: &one, Date: &one},
		{Amount: &one, Currency: &one, Date: &one},
		{Amount: &one, Currency: &one, Business: &one},
		{},
	}
	for i, c := range cases {
		if _, err := CalculateOverallConfidence(c); !errors.Is(err, ErrMissingComponent) {
			t.Fatalf("case %d: expected ErrMissingComponent, got %v", i, err)
		}
	}
}

func TestCalculateOverallConfidenceDeterministic(t *testing.T) {
	c := Components(0.33, 0.67, 0.11, 0.99)
	first, err := CalculateOverallConfidence(c)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		got, _ := CalculateOverallConfidence(c)
		if got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}
