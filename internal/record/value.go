package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the field value types the wire format
// supports. Only String, Int, Bool, Array, Object, and Tombstone implement
// it. Floats are rejected at the boundary: they would make canonical
// hashing and last-write-wins equality inexact.
type Value interface {
	fieldValue() // sealed
}

// String is a text field value.
type String string

func (String) fieldValue() {}

// Int is an integer field value. Always int64, never float64.
type Int int64

func (Int) fieldValue() {}

// Bool is a boolean field value.
type Bool bool

func (Bool) fieldValue() {}

// Array is an ordered list of field values.
type Array []Value

func (Array) fieldValue() {}

// Object is a nested document of field values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) fieldValue() {}

// Tombstone marks a deleted field. It participates in the same
// last-write-wins comparison as any other value, so a peer that edited a
// field concurrently with its deletion sees the deletion lose or win by
// timestamp instead of silently resurrecting the field. Its write time
// lives in the field's FieldState.
//
// On the wire a tombstone encodes as JSON null.
type Tombstone struct{}

func (Tombstone) fieldValue() {}

// MarshalJSON encodes the tombstone as null.
func (Tombstone) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IsTombstone reports whether v marks a deleted field.
func IsTombstone(v Value) bool {
	_, ok := v.(Tombstone)
	return ok
}

// SortedKeys returns the object's keys in RFC 8785 canonical order
// (UTF-16 code units). Go's sort.Strings sorts UTF-8 bytes, which produces
// a different order for strings outside the ASCII range.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units as required by
// RFC 8785. utf16.Encode handles surrogate pairs correctly.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := len(a16)
	if len(b16) < n {
		n = len(b16)
	}
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// MarshalJSON implements json.Marshaler for Object with keys in canonical
// order. This is display serialization, not canonical serialization; use
// MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals any Value to JSON bytes via type-switch dispatch.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Tombstone:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// UnmarshalValue decodes JSON bytes into a Value. JSON null decodes to a
// Tombstone; floats are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return toValue(raw)
}

// toValue recursively converts a decoded JSON value into a Value.
func toValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Tombstone{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floating-point values are not supported: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			if IsTombstone(ev) {
				return nil, fmt.Errorf("array[%d]: null is only valid as a top-level tombstone", i)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			if IsTombstone(ev) {
				return nil, fmt.Errorf("object[%q]: null is only valid as a top-level tombstone", k)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// CloneValue returns an independent deep copy of v.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = CloneValue(elem)
		}
		return out
	default:
		// String, Int, Bool, Tombstone are immutable by value.
		return v
	}
}

// ValueEqual reports deep structural equality between two values.
// Total over the closed sum: values of different variants are never equal.
func ValueEqual(a, b Value) bool {
	switch av := a.(type) {
	case Tombstone:
		return IsTombstone(b)
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, present := bv[k]
			if !present || !ValueEqual(elem, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
