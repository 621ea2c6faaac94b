package ir

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values that may appear as criteria
// operands, identifier tuples and query parameters.
// Only IRNull, IRString, IRInt, IRBool, IRArray and IRObject implement it.
// There is no float variant: identity-map keys and plan fingerprints must be
// exact, and a float identifier would not survive a round trip.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents SQL NULL / an absent value.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered list of values (IN-list operands).
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a string-keyed map of values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys ordered by UTF-16 code units, the ordering used by
// canonical JSON.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}

// IsNull reports whether v is IRNull (or a nil interface).
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// FromGo converts a Go value into an IRValue.
//
// Accepted inputs: nil, IRValue, string, []byte, bool, every signed and
// unsigned integer kind (uint64 only when it fits in int64), slices and
// arrays of accepted values, and map[string]any. Floats are rejected.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case []byte:
		return IRString(string(val)), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		return fromUint(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are not supported: %v", val)
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		arr := make(IRArray, rv.Len())
		for i := range arr {
			elem, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = elem
		}
		return arr, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return FromGo(rv.Elem().Interface())
	}

	return nil, fmt.Errorf("unsupported type: %T", v)
}

func fromUint(n uint64) (IRValue, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", n)
	}
	return IRInt(int64(n)), nil
}

// Native converts an IRValue into the plain Go value handed to database/sql.
// IRArray becomes []any; IRObject becomes map[string]any.
func Native(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether two values are structurally identical.
func Equal(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, present := bv[k]
			if !present || !Equal(elem, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders a value for human-facing output (CLI tables, error text).
func Format(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "NULL"
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRBool:
		return strconv.FormatBool(bool(val))
	default:
		data, err := MarshalCanonical(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
