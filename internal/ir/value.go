package ir

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing resolved property values.
// Only Null, String, Number, Bool, Array, and Object implement this.
//
// Unlike content-addressed records, property values are animated and
// therefore carry floating point numbers. NaN and +/-Inf are rejected at
// the canonical serialization boundary.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an absent value.
// Using an explicit type ensures all Values satisfy the sealed interface.
type Null struct{}

func (Null) irValue() {}

// String represents a string value.
type String string

func (String) irValue() {}

// Number represents a numeric value. Always float64.
type Number float64

func (Number) irValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
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
	}
	return 0
}

// IsPrimitive reports whether v is a scalar (null, string, number, bool).
func IsPrimitive(v Value) bool {
	switch v.(type) {
	case nil, Null, String, Number, Bool:
		return true
	}
	return false
}

// AsNumber returns v as a float64 if it is numeric.
func AsNumber(v Value) (float64, bool) {
	n, ok := v.(Number)
	return float64(n), ok
}

// FromGo converts authored Go data into a Value.
//
// Accepted inputs: nil, Value, string, bool, every integer and float kind,
// []any (and other slices via reflection), map[string]any, and Spec.
// Anything else (functions, channels, structs) is an error: such data is
// descriptor material, not a property value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int8:
		return Number(val), nil
	case int16:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint:
		return Number(val), nil
	case uint8:
		return Number(val), nil
	case uint16:
		return Number(val), nil
	case uint32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	case Spec:
		obj := make(Object, len(val))
		for _, entry := range val {
			e, err := FromGo(entry.Raw)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", entry.Name, err)
			}
			obj[entry.Name] = e
		}
		return obj, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		arr := make(Array, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

// MustFromGo is FromGo for literals known to be convertible.
// Panics on error.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ToGo converts a Value back into plain Go data
// (nil, string, float64, bool, []any, map[string]any).
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	}
	return nil
}

// Format renders v for logs and CLI output. Whole numbers print without
// a fractional part.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Number:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%g", f)
	case Bool:
		if val {
			return "true"
		}
		return "false"
	}
	b, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", ToGo(v))
	}
	return string(b)
}
