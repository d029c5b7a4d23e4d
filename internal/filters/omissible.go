// Package filters models the DSP filter chain as an omissible patch
// document: every field may be absent (leave as-is), null (clear it), or
// present with a concrete value. A tagged variant is needed here rather
// than a nested optional or sentinel value because "unset" and "clear"
// are distinct, observable patch operations.
package filters

import "encoding/json"

// State tags which of the three omissible variants a field carries.
type State int

const (
	// Absent means "do not change this field" — the default zero value,
	// so a zero-value FilterChain patch changes nothing.
	Absent State = iota
	// Null means "clear this field".
	Null
	// Present means "set this field to Value".
	Present
)

// Omissible is a three-state patch field: absent, null, or present(value).
type Omissible[T any] struct {
	State State
	Value T
}

// OmitAbsent returns a field that leaves the existing value untouched.
func OmitAbsent[T any]() Omissible[T] {
	return Omissible[T]{State: Absent}
}

// OmitNull returns a field that clears the existing value.
func OmitNull[T any]() Omissible[T] {
	return Omissible[T]{State: Null}
}

// Set returns a field that overwrites the existing value.
func Set[T any](v T) Omissible[T] {
	return Omissible[T]{State: Present, Value: v}
}

// IsAbsent reports whether the field should be left unchanged.
func (o Omissible[T]) IsAbsent() bool { return o.State == Absent }

// IsNull reports whether the field should be cleared.
func (o Omissible[T]) IsNull() bool { return o.State == Null }

// IsPresent reports whether the field carries a concrete value.
func (o Omissible[T]) IsPresent() bool { return o.State == Present }

// UnmarshalJSON sets State to Null for a JSON null and Present for any
// other value. A field the caller never mentions in the patch object is
// never handed to UnmarshalJSON at all, so its State stays the zero value
// (Absent) — that is what makes omissible patch semantics work over the
// wire without a separate presence map.
func (o *Omissible[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.State = Null
		o.Value = *new(T)
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.State = Present
	o.Value = v
	return nil
}

// MarshalJSON renders a present field as its value and a null field as
// JSON null. Absent fields are handled one level up, by FilterChain's own
// MarshalJSON, which omits the key entirely rather than calling this.
func (o Omissible[T]) MarshalJSON() ([]byte, error) {
	if o.State == Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// mergeField applies omissible patch semantics for a single field:
// absent keeps existing, null clears to Absent, present overwrites.
func mergeField[T any](existing, patch Omissible[T]) Omissible[T] {
	switch patch.State {
	case Absent:
		return existing
	case Null:
		return Omissible[T]{State: Absent}
	default:
		return patch
	}
}
