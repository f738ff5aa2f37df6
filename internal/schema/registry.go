package schema

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Registry maps the fields of one record type to their column metadata.
//
// A Registry is built once and never mutated afterwards, so it is safe for
// unrestricted concurrent use.
type Registry struct {
	model   string
	table   string
	columns []ColumnDefinition
	byField map[FieldID]int
	byName  map[string]int
	pk      int
}

// Build validates a model description and constructs its registry.
//
// Build fails with a *RegistrationError when the table name is empty, a field
// identifier repeats, two fields resolve to the same column name, or a field
// type cannot be represented and carries no storage override.
func Build(m Model) (*Registry, error) {
	name := m.Name
	if name == "" {
		name = m.Table
	}

	table := normalizeIdent(m.Table)
	if table == "" {
		return nil, &RegistrationError{Model: name, Message: "table name is required"}
	}
	if len(m.Fields) == 0 {
		return nil, &RegistrationError{Model: name, Message: "at least one persisted field is required"}
	}

	r := &Registry{
		model:   name,
		table:   table,
		columns: make([]ColumnDefinition, 0, len(m.Fields)),
		byField: make(map[FieldID]int, len(m.Fields)),
		byName:  make(map[string]int, len(m.Fields)),
		pk:      -1,
	}

	for _, f := range m.Fields {
		col, err := buildColumn(name, f)
		if err != nil {
			return nil, err
		}

		if _, dup := r.byField[col.Field]; dup {
			return nil, &RegistrationError{Model: name, Field: string(col.Field), Message: "duplicate field identifier"}
		}
		if prev, dup := r.byName[col.Name]; dup {
			return nil, &RegistrationError{
				Model:   name,
				Field:   string(col.Field),
				Message: fmt.Sprintf("column name %q already used by field %s", col.Name, r.columns[prev].Field),
			}
		}

		idx := len(r.columns)
		r.columns = append(r.columns, col)
		r.byField[col.Field] = idx
		r.byName[col.Name] = idx

		if col.IsPrimaryKey() {
			if r.pk >= 0 {
				return nil, &RegistrationError{Model: name, Field: string(col.Field), Message: "multiple primary key columns"}
			}
			r.pk = idx
		}
	}

	return r, nil
}

func buildColumn(model string, f Field) (ColumnDefinition, error) {
	id := FieldID(normalizeIdent(string(f.ID)))
	if id == "" {
		return ColumnDefinition{}, &RegistrationError{Model: model, Message: "field identifier is required"}
	}
	if f.Type == nil {
		return ColumnDefinition{}, &RegistrationError{Model: model, Field: string(id), Message: "field type is required"}
	}

	name := normalizeIdent(f.Column)
	if name == "" {
		name = ColumnName(string(id))
	}

	storage := f.StorageType
	if storage == "" {
		inferred, err := InferStorageType(f.Type)
		if err != nil {
			return ColumnDefinition{}, &RegistrationError{Model: model, Field: string(id), Message: err.Error()}
		}
		storage = inferred
	}

	constraints := make([]Constraint, 0, len(f.Constraints))
	seen := make(map[Constraint]bool, len(f.Constraints))
	for _, k := range f.Constraints {
		if !seen[k] {
			seen[k] = true
			constraints = append(constraints, k)
		}
	}

	var index []int
	if f.index != nil {
		index = append([]int(nil), f.index...)
	}

	return ColumnDefinition{
		Field:       id,
		Name:        name,
		Declared:    f.StorageType,
		StorageType: storage,
		GoType:      deref(f.Type),
		IsOptional:  f.Optional || f.Type.Kind() == reflect.Pointer,
		Constraints: constraints,
		Index:       index,
	}, nil
}

// Model returns the name of the record type the registry describes.
func (r *Registry) Model() string { return r.model }

// Table returns the storage table name.
func (r *Registry) Table() string { return r.table }

// Columns returns the column definitions in declaration order.
// The returned columns are copies.
func (r *Registry) Columns() []ColumnDefinition {
	out := make([]ColumnDefinition, len(r.columns))
	for i, col := range r.columns {
		out[i] = col.clone()
	}
	return out
}

// column returns a copy of the column at idx that shares no memory with r.
func (r *Registry) column(idx int) ColumnDefinition {
	return r.columns[idx].clone()
}

// Len returns the number of persisted columns.
func (r *Registry) Len() int { return len(r.columns) }

// Lookup returns the column for a field identifier.
//
// A miss means the predicate or sort key was built against a different record
// type than the registry describes. That is a programming error, so Lookup
// panics with a *LookupError instead of returning one. Use Find when the
// identifier comes from untrusted input.
func (r *Registry) Lookup(id FieldID) ColumnDefinition {
	col, ok := r.Find(id)
	if !ok {
		panic(&LookupError{Model: r.model, Field: id})
	}
	return col
}

// Find is the non-panicking form of Lookup.
func (r *Registry) Find(id FieldID) (ColumnDefinition, bool) {
	idx, ok := r.byField[id]
	if !ok {
		return ColumnDefinition{}, false
	}
	return r.column(idx), true
}

// ByColumn resolves a storage column name back to its definition.
func (r *Registry) ByColumn(name string) (ColumnDefinition, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return ColumnDefinition{}, false
	}
	return r.column(idx), true
}

// Resolve accepts either a field identifier or a column name.
// Field identifiers take precedence.
func (r *Registry) Resolve(name string) (ColumnDefinition, bool) {
	if col, ok := r.Find(FieldID(name)); ok {
		return col, true
	}
	return r.ByColumn(name)
}

// PrimaryKey returns the primary key column, if the record type has one.
func (r *Registry) PrimaryKey() (ColumnDefinition, bool) {
	if r.pk < 0 {
		return ColumnDefinition{}, false
	}
	return r.column(r.pk), true
}

// Equivalent reports whether two registries describe the same table with the
// same columns.
func (r *Registry) Equivalent(other *Registry) bool {
	if r == other {
		return true
	}
	if other == nil || r.table != other.table || len(r.columns) != len(other.columns) {
		return false
	}
	for i, c := range r.columns {
		if c.String() != other.columns[i].String() || c.Field != other.columns[i].Field {
			return false
		}
	}
	return true
}

// ColumnName derives a default column name from a field identifier by
// lowering its leading capital run: "FavoriteColor" -> "favoriteColor",
// "ID" -> "id", "URLPath" -> "urlPath".
func ColumnName(field string) string {
	runes := []rune(field)
	if len(runes) == 0 {
		return ""
	}

	upper := 0
	for upper < len(runes) && isUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return field
	case upper == len(runes) || upper == 1:
		return strings.ToLower(string(runes[:upper])) + string(runes[upper:])
	default:
		// Keep the last capital: it starts the next word.
		return strings.ToLower(string(runes[:upper-1])) + string(runes[upper-1:])
	}
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// normalizeIdent trims and NFC-normalizes an identifier so that visually
// identical names always compare equal.
func normalizeIdent(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
