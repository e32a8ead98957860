// Package fault classifies accounting failures into the three kinds callers act on:
// caller-fixable validation errors, upstream data-quality errors and internal
// consistency errors.
package fault

import (
	"errors"
	"sort"
	"strings"
)

// Class groups error kinds by who can fix them.
type Class int

const (
	// Internal marks engine bugs. Unknown errors are treated as internal.
	Internal Class = iota
	// Validation errors are fixable by the caller and never retried.
	Validation
	// Data errors point at bad source transactions/documents.
	Data
)

func (c Class) String() string {
	switch c {
	case Validation:
		return "validation"
	case Data:
		return "data"
	default:
		return "internal"
	}
}

// Kind is a sentinel error with a class attached.
type Kind struct {
	class Class
	name  string
}

// New declares a new error kind.
func New(class Class, name string) *Kind {
	return &Kind{class: class, name: name}
}

func (k *Kind) Error() string { return k.name }

// Class returns the kind's class.
func (k *Kind) Class() Class { return k.class }

// Name returns the short kind name, used as a metrics label.
func (k *Kind) Name() string { return k.name }

// Error is a kind enriched with the operation and enough context for a human to find
// the offending record.
type Error struct {
	Kind   *Kind
	Op     string
	Fields map[string]string
}

// Wrap builds an *Error. fields are key/value pairs; a trailing odd key is dropped.
func Wrap(kind *Kind, op string, fields ...string) *Error {
	e := &Error{Kind: kind, Op: op}
	if len(fields) > 1 {
		e.Fields = make(map[string]string, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			e.Fields[fields[i]] = fields[i+1]
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.name)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(e.Fields[k])
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// KindOf returns the first Kind found in err's chain.
func KindOf(err error) (*Kind, bool) {
	var k *Kind
	if errors.As(err, &k) {
		return k, true
	}
	return nil, false
}

// ClassOf classifies err. Errors without a Kind are Internal.
func ClassOf(err error) Class {
	if k, ok := KindOf(err); ok {
		return k.class
	}
	return Internal
}

// NameOf returns the kind name or "unknown".
func NameOf(err error) string {
	if k, ok := KindOf(err); ok {
		return k.name
	}
	return "unknown"
}
