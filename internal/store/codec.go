package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/value"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// timeLayouts are the text forms DATETIME values come back in when the
// driver does not parse them itself.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// encodeRecord reads every registered field of rec into a Row.
// An auto-increment key left at its zero value is omitted so the backend
// assigns one.
func encodeRecord(reg *schema.Registry, rec reflect.Value) (Row, error) {
	row := make(Row, reg.Len())
	for _, col := range reg.Columns() {
		fv := rec.FieldByIndex(col.Index)
		if col.IsAutoIncrement() && fv.IsZero() {
			continue
		}
		v, err := encodeValue(fv)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", col.Field, err)
		}
		row[col.Field] = v
	}
	return row, nil
}

// encodeValue converts a field to its bind form. Valuers are handed to the
// driver, bools become integers and generic values become JSON.
func encodeValue(fv reflect.Value) (any, error) {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return nil, nil
		}
		if fv.Type().Implements(valuerType) {
			return fv.Interface(), nil
		}
		fv = fv.Elem()
	}

	if fv.Type().Implements(valuerType) {
		return fv.Interface(), nil
	}
	if fv.CanAddr() && fv.Addr().Type().Implements(valuerType) {
		return fv.Addr().Interface(), nil
	}

	if schema.IsGenericEncoded(fv.Type()) {
		b, err := json.Marshal(fv.Interface())
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	return value.Normalize(fv.Interface())
}

// decodeRecord assigns scanned column values to the fields of rec.
func decodeRecord(reg *schema.Registry, rec reflect.Value, values []any) error {
	for i, col := range reg.Columns() {
		if err := assign(rec.FieldByIndex(col.Index), values[i]); err != nil {
			return &DecodeError{Column: col.Name, Err: err}
		}
	}
	return nil
}

// assign stores a driver value in dst, converting between the forms the
// supported drivers produce and the field's Go type.
func assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	t := dst.Type()
	switch {
	case t == timeType:
		ts, err := asTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(ts))
		return nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		b, ok := asBytes(src)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", src, t)
		}
		dst.SetBytes(append([]byte(nil), b...))
		return nil
	case schema.IsGenericEncoded(t):
		b, ok := asBytes(src)
		if !ok {
			return fmt.Errorf("cannot decode %T as JSON into %s", src, t)
		}
		ptr := reflect.New(t)
		if err := json.Unmarshal(b, ptr.Interface()); err != nil {
			return err
		}
		dst.Set(ptr.Elem())
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		dst.SetBool(n != 0)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil
	case reflect.String:
		switch s := src.(type) {
		case string:
			dst.SetString(s)
		case []byte:
			dst.SetString(string(s))
		default:
			dst.SetString(fmt.Sprint(s))
		}
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", src, t)
}

func asBytes(src any) ([]byte, bool) {
	switch v := src.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

func asInt(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as an integer", src)
}

func asFloat(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("cannot read %T as a float", src)
}

func asTime(src any) (time.Time, error) {
	var s string
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return time.Time{}, fmt.Errorf("cannot read %T as a time", src)
	}

	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}
