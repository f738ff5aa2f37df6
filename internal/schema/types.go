package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// FieldID is the stable identifier of a record field.
//
// For reflection-registered structs it is the Go field name ("FavoriteColor").
// For explicitly described models it is whatever the description chose.
// Predicates and sort keys reference fields by FieldID, never by column name.
type FieldID string

// StorageType is the storage class a column is declared with.
// Dialects map each storage type to their own DDL type name.
type StorageType string

const (
	BigInt   StorageType = "BIGINT"
	Real     StorageType = "REAL"
	Text     StorageType = "TEXT"
	Blob     StorageType = "BLOB"
	DateTime StorageType = "DATETIME"
)

// ParseStorageType accepts a storage type name case-insensitively.
// A few common aliases are folded onto the canonical names.
func ParseStorageType(s string) (StorageType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BIGINT", "INT", "INTEGER":
		return BigInt, nil
	case "REAL", "FLOAT", "DOUBLE":
		return Real, nil
	case "TEXT", "STRING":
		return Text, nil
	case "BLOB", "BYTES":
		return Blob, nil
	case "DATETIME", "TIMESTAMP", "TIME":
		return DateTime, nil
	default:
		return "", fmt.Errorf("unknown storage type %q", s)
	}
}

// Constraint is a declarative column constraint.
type Constraint string

const (
	Unique                  Constraint = "unique"
	NotNull                 Constraint = "not_null"
	PrimaryKey              Constraint = "primary_key"
	PrimaryKeyAutoIncrement Constraint = "primary_key_autoincrement"
)

// ParseConstraint accepts the constraint names used in struct tags and
// model declarations.
func ParseConstraint(s string) (Constraint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unique":
		return Unique, nil
	case "notnull", "not_null":
		return NotNull, nil
	case "pk", "primary_key":
		return PrimaryKey, nil
	case "autoincrement", "pk_autoincrement", "primary_key_autoincrement":
		return PrimaryKeyAutoIncrement, nil
	default:
		return "", fmt.Errorf("unknown constraint %q", s)
	}
}

// Field describes one persisted field of a record type, as supplied to Build.
type Field struct {
	// ID is the stable field identifier used by predicates and sort keys.
	ID FieldID

	// Column is the storage column name. Empty means derive from ID.
	Column string

	// Type is the field's semantic Go type. Pointer types are optional.
	Type reflect.Type

	// Optional marks the field as nullable even when Type is not a pointer.
	Optional bool

	// Constraints are declared constraints, in declaration order.
	Constraints []Constraint

	// StorageType overrides inference when non-empty.
	StorageType StorageType

	index []int
}

// Model describes a record type: its table and its persisted fields in
// declaration order.
type Model struct {
	Name   string
	Table  string
	Fields []Field
}

// ColumnDefinition is the immutable column metadata for one field.
type ColumnDefinition struct {
	Field FieldID
	Name  string

	// Declared is the explicit storage override, empty when inferred.
	Declared StorageType

	// StorageType is the resolved storage type (Declared or inferred).
	StorageType StorageType

	// GoType is the field's semantic type with pointers removed.
	GoType reflect.Type

	IsOptional bool

	// Constraints are the declared constraints only. See EffectiveConstraints.
	Constraints []Constraint

	// Index is the struct field index path for reflection-registered types,
	// nil for described models.
	Index []int
}

func (c ColumnDefinition) clone() ColumnDefinition {
	c.Constraints = slices.Clone(c.Constraints)
	c.Index = slices.Clone(c.Index)
	return c
}

// EffectiveConstraints returns the constraints emitted in DDL: the declared
// ones, then NOT NULL for non-optional columns, then primary key with
// autoincrement for a column named "id". Duplicates are dropped and order is
// preserved.
func (c ColumnDefinition) EffectiveConstraints() []Constraint {
	out := make([]Constraint, 0, len(c.Constraints)+2)
	seen := make(map[Constraint]bool, len(c.Constraints)+2)
	add := func(k Constraint) {
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}

	for _, k := range c.Constraints {
		add(k)
	}
	if !c.IsOptional {
		add(NotNull)
	}
	if c.Name == "id" {
		add(PrimaryKeyAutoIncrement)
	}
	return out
}

// Has reports whether the column's effective constraints include k.
func (c ColumnDefinition) Has(k Constraint) bool {
	for _, e := range c.EffectiveConstraints() {
		if e == k {
			return true
		}
	}
	return false
}

// IsPrimaryKey reports whether the column is the record's primary key.
func (c ColumnDefinition) IsPrimaryKey() bool {
	return c.Has(PrimaryKey) || c.Has(PrimaryKeyAutoIncrement)
}

// IsAutoIncrement reports whether the backend assigns the column's value.
func (c ColumnDefinition) IsAutoIncrement() bool {
	return c.Has(PrimaryKeyAutoIncrement)
}

func (c ColumnDefinition) String() string {
	goType := "<nil>"
	if c.GoType != nil {
		goType = c.GoType.String()
	}
	return fmt.Sprintf("ColumnDefinition(name: %q, storage: %s, declared: %q, goType: %s, optional: %t, constraints: %v)",
		c.Name, c.StorageType, c.Declared, goType, c.IsOptional, c.Constraints)
}
