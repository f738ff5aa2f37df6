package dialect

import (
	"fmt"
	"strings"

	"github.com/nakajima/serverdata/internal/schema"
)

// InBinding is the convention a backend uses to bind IN-list values.
type InBinding int

const (
	// ScalarBind expands a list to one placeholder per element: x IN (?, ?, ?).
	ScalarBind InBinding = iota

	// ArrayBind passes the whole list as a single bound parameter.
	ArrayBind
)

func (b InBinding) String() string {
	if b == ArrayBind {
		return "array"
	}
	return "scalar"
}

// ParseInBinding accepts "scalar" or "array".
func ParseInBinding(s string) (InBinding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar", "":
		return ScalarBind, nil
	case "array":
		return ArrayBind, nil
	default:
		return 0, fmt.Errorf("unknown IN binding %q (want scalar or array)", s)
	}
}

// Marker is the dialect-neutral placeholder emitted by the compiler.
// Render rewrites each marker into the dialect's own token.
const Marker = "?"

// Dialect captures the backend-specific parts of statement text.
type Dialect interface {
	// Name identifies the dialect ("generic", "sqlite", "mysql", "postgres").
	Name() string

	// Quote quotes an identifier.
	Quote(ident string) string

	// Placeholder renders the n-th (1-based) bound parameter.
	Placeholder(n int) string

	// InBinding reports the IN-list convention.
	InBinding() InBinding

	// ArrayMembership renders a membership test of subject against one
	// array-bound placeholder. Only used under ArrayBind.
	ArrayMembership(subject, placeholder string) string

	// BindArray converts a normalized list into the single bind value the
	// driver accepts for ArrayMembership.
	BindArray(values []any) (any, error)

	// ColumnType is the DDL type for a column.
	ColumnType(col schema.ColumnDefinition) string

	// ConstraintClause is the DDL text for a constraint on col, or "" when the
	// constraint is expressed through the column type instead.
	ConstraintClause(col schema.ColumnDefinition, c schema.Constraint) string

	// Returning reports whether INSERT ... RETURNING is available.
	Returning() bool

	// LastInsertID is the query reading the last generated key on the
	// current connection. Empty when Returning is true.
	LastInsertID() string

	// InsertIgnore returns the verb and the trailing clause of a conflict
	// ignoring insert.
	InsertIgnore() (verb, suffix string)

	// ListTables lists the user tables of the current database.
	ListTables() string

	// Truncate empties a table.
	Truncate(table string) string
}

// Render rewrites neutral markers in sql into dialect placeholders, numbering
// from 1. Markers inside quoted identifiers and string literals are kept.
func Render(d Dialect, sql string) string {
	if !strings.Contains(sql, Marker) {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '?':
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CountMarkers counts the neutral markers outside quoted regions.
func CountMarkers(sql string) int {
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			n++
		}
	}
	return n
}

// ByName returns the dialect registered under name.
func ByName(name string, opts ...Option) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "generic", "":
		return Generic(opts...), nil
	case "sqlite", "sqlite3":
		return SQLite(opts...), nil
	case "mysql":
		return MySQL(opts...), nil
	case "postgres", "postgresql", "pq":
		return Postgres(opts...), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

// ForDriver maps a database/sql driver name to its dialect.
func ForDriver(driver string, opts ...Option) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite(opts...), nil
	case "mysql":
		return MySQL(opts...), nil
	case "postgres":
		return Postgres(opts...), nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

func quoteWith(q, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
