package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Find and First when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrNotTestDatabase is returned by Truncate and Drop on a container whose
	// name does not contain "test".
	ErrNotTestDatabase = errors.New("refusing to modify a database that is not named for testing")
)

// UnknownTableError reports an insert into a table that has not been set up.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table %q does not exist; call Setup first", e.Table)
}

// IsUnknownTable reports whether err is an UnknownTableError.
func IsUnknownTable(err error) bool {
	var target *UnknownTableError
	return errors.As(err, &target)
}

// DecodeError reports a column value that could not be assigned to its field.
type DecodeError struct {
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode column %q: %v", e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
