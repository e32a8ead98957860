package finance

import "fmt"

// ChargeKind is the closed set of charge flavours. The ledger builder switches on it
// exhaustively.
type ChargeKind int

const (
	KindCommon ChargeKind = iota
	KindConversion
	KindSalary
	KindBusinessTrip
	KindInternalTransfer
	KindBalance
)

var chargeKindNames = [...]string{
	KindCommon:           "common",
	KindConversion:       "conversion",
	KindSalary:           "salary",
	KindBusinessTrip:     "business_trip",
	KindInternalTransfer: "internal_transfer",
	KindBalance:          "balance",
}

func (k ChargeKind) String() string {
	if k < 0 || int(k) >= len(chargeKindNames) {
		return fmt.Sprintf("charge_kind(%d)", int(k))
	}
	return chargeKindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k ChargeKind) Valid() bool {
	return k >= 0 && int(k) < len(chargeKindNames)
}

// ParseChargeKind is the inverse of String.
func ParseChargeKind(s string) (ChargeKind, error) {
	for i, name := range chargeKindNames {
		if name == s {
			return ChargeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown charge kind %q", s)
}

func (k ChargeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid charge kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ChargeKind) UnmarshalText(b []byte) error {
	parsed, err := ParseChargeKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
