package value

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Kind classifies a normalized bind value.
//
// Every value that reaches a SQL statement as a bound parameter is first
// normalized to one of these kinds so that compiled statements are
// deterministic regardless of which Go integer or float width the caller used.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindInt
	KindFloat
	KindText
	KindBlob
	KindTime
	KindBool
	KindValuer
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	case KindValuer:
		return "valuer"
	default:
		return "invalid"
	}
}

// Numeric reports whether the kind supports arithmetic negation.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Normalize converts an arbitrary Go scalar to its canonical bind form:
//
//	nil, nil pointers        -> nil
//	signed/unsigned integers -> int64
//	float32/float64          -> float64
//	string (and named)       -> string
//	[]byte                   -> []byte
//	time.Time                -> time.Time
//	bool                     -> int64 1 or 0
//	driver.Valuer            -> unchanged (the driver encodes it)
//
// Pointers are dereferenced. Anything else is rejected; lists go through
// NormalizeList instead.
func Normalize(v any) (any, error) {
	n, _, err := normalize(v)
	return n, err
}

// KindOf normalizes v and reports its kind.
func KindOf(v any) (Kind, error) {
	_, k, err := normalize(v)
	return k, err
}

func normalize(v any) (any, Kind, error) {
	if v == nil {
		return nil, KindNull, nil
	}

	switch val := v.(type) {
	case int64:
		return val, KindInt, nil
	case int:
		return int64(val), KindInt, nil
	case float64:
		return val, KindFloat, nil
	case string:
		return val, KindText, nil
	case []byte:
		return val, KindBlob, nil
	case bool:
		return boolInt(val), KindBool, nil
	case time.Time:
		return val, KindTime, nil
	case driver.Valuer:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, KindNull, nil
		}
		return val, KindValuer, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, KindNull, nil
		}
		rv = rv.Elem()
		if rv.Type().Implements(valuerType) {
			return rv.Interface(), KindValuer, nil
		}
	}

	if rv.Type() == timeType {
		return rv.Interface().(time.Time), KindTime, nil
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), KindInt, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, KindInvalid, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), KindInt, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), KindFloat, nil
	case reflect.String:
		return rv.String(), KindText, nil
	case reflect.Bool:
		return boolInt(rv.Bool()), KindBool, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), KindBlob, nil
		}
	}

	return nil, KindInvalid, fmt.Errorf("unsupported bind value type: %T", v)
}

// boolInt is the integer form booleans are stored and bound as.
func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// NormalizeList normalizes every element of a slice or array.
// A []byte is a scalar blob, not a list, and is rejected here.
func NormalizeList(v any) ([]any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			n, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("nil is not a list")
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, fmt.Errorf("byte slice is a scalar, not a list")
	}

	out := make([]any, rv.Len())
	for i := range out {
		n, err := Normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list index %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Negate returns the arithmetic negation of a numeric value.
// Non-numeric values are rejected, as is the one int64 without a negation.
func Negate(v any) (any, error) {
	n, kind, err := normalize(v)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindInt:
		i := n.(int64)
		if i == math.MinInt64 {
			return nil, fmt.Errorf("cannot negate %d: overflows int64", i)
		}
		return -i, nil
	case KindFloat:
		return -n.(float64), nil
	default:
		return nil, fmt.Errorf("cannot negate %s value %v", kind, v)
	}
}

// Homogeneous reports whether all non-null elements share one kind.
func Homogeneous(list []any) bool {
	first := KindInvalid
	for _, item := range list {
		k, err := KindOf(item)
		if err != nil {
			return false
		}
		if k == KindNull {
			continue
		}
		if first == KindInvalid {
			first = k
			continue
		}
		if k != first {
			return false
		}
	}
	return true
}
