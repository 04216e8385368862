// Package shape normalizes backend fields that arrive as a single object, an
// array, or nothing depending on cardinality.
package shape

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Kind int

const (
	Absent Kind = iota
	Single
	Many
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Many:
		return "many"
	default:
		return "absent"
	}
}

// Variant holds one of Absent, Single(T) or Many([]T).
type Variant[T any] struct {
	kind Kind
	one  T
	many []T
}

func None[T any]() Variant[T] { return Variant[T]{} }

func One[T any](v T) Variant[T] { return Variant[T]{kind: Single, one: v} }

func List[T any](vs []T) Variant[T] { return Variant[T]{kind: Many, many: vs} }

func (v Variant[T]) Kind() Kind { return v.kind }

// Slice collapses the variant into a non-nil slice.
func (v Variant[T]) Slice() []T {
	switch v.kind {
	case Single:
		return []T{v.one}
	case Many:
		out := make([]T, len(v.many))
		copy(out, v.many)
		return out
	default:
		return []T{}
	}
}

// UnmarshalJSON decides the variant from the first significant byte: null or
// an empty payload is Absent, an array is Many, anything else is Single.
func (v *Variant[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Variant[T]{}
		return nil
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return fmt.Errorf("shape: decode list: %w", err)
		}
		*v = List(many)
		return nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return fmt.Errorf("shape: decode single: %w", err)
	}
	*v = One(one)
	return nil
}

// MarshalJSON always emits the normalized array form.
func (v Variant[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Slice())
}
