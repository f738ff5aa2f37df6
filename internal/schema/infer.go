package schema

import (
	"fmt"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// InferStorageType derives a storage type from a field's semantic type.
//
// Priority, first match wins:
//
//  1. integer family (signed and unsigned integers, bool) -> BIGINT
//  2. floating family                                     -> REAL
//  3. text (string kinds)                                 -> TEXT
//  4. binary ([]byte)                                     -> BLOB
//  5. temporal (time.Time)                                -> DATETIME
//  6. any other encodable type (struct, map, slice,
//     array, interface)                                   -> BLOB holding JSON
//
// An explicit override on the field always wins over this function.
// Channels, functions, complex numbers and unsafe pointers cannot be encoded
// and are rejected.
func InferStorageType(t reflect.Type) (StorageType, error) {
	if t == nil {
		return "", fmt.Errorf("nil type")
	}
	t = deref(t)

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Bool:
		return BigInt, nil
	case reflect.Float32, reflect.Float64:
		return Real, nil
	case reflect.String:
		return Text, nil
	}

	if isBytes(t) {
		return Blob, nil
	}
	if t == timeType {
		return DateTime, nil
	}

	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Interface:
		return Blob, nil
	}

	return "", fmt.Errorf("cannot represent %s as a column", t)
}

// IsGenericEncoded reports whether values of t are stored through the JSON
// fallback rather than handed to the driver directly.
func IsGenericEncoded(t reflect.Type) bool {
	t = deref(t)
	if t == timeType || isBytes(t) {
		return false
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Interface:
		return true
	}
	return false
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
