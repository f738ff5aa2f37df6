package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/value"
)

// Statement is executable SQL text with its ordered bindings.
type Statement struct {
	SQL      string
	Bindings []any
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection accepts asc/ascending and desc/descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort direction %q", s)
	}
}

// Sort orders a query by one column.
type Sort struct {
	Column    schema.ColumnDefinition
	Direction Direction
}

// SortBy resolves a sort key through the registry. Like Registry.Lookup it
// panics when the field is not registered.
func SortBy(reg *schema.Registry, id schema.FieldID, dir Direction) Sort {
	return Sort{Column: reg.Lookup(id), Direction: dir}
}

// ParseSort reads "field" or "field:desc". The field may be given by
// identifier or column name.
func ParseSort(reg *schema.Registry, s string) (Sort, error) {
	name, dirText, _ := strings.Cut(s, ":")
	dir, err := ParseDirection(dirText)
	if err != nil {
		return Sort{}, err
	}
	col, ok := reg.Resolve(strings.TrimSpace(name))
	if !ok {
		return Sort{}, errorf(ErrCodeUnknownField, nil, "sort field %q is not registered on %s", name, reg.Model())
	}
	return Sort{Column: col, Direction: dir}, nil
}

// Query holds the optional parts of a SELECT.
type Query struct {
	Where predicate.Expr
	Sort  *Sort
	Limit *int
}

// Limit returns a pointer to n, for Query.Limit.
func Limit(n int) *int { return &n }

// Builder composes statements for one record type.
type Builder struct {
	compiler *Compiler
}

// NewBuilder returns a builder for reg. A nil dialect means dialect.Generic().
func NewBuilder(reg *schema.Registry, d dialect.Dialect) *Builder {
	return &Builder{compiler: NewCompiler(reg, d)}
}

// Compiler returns the predicate compiler the builder uses.
func (b *Builder) Compiler() *Compiler { return b.compiler }

func (b *Builder) quote(ident string) string {
	return b.compiler.dialect.Quote(ident)
}

func (b *Builder) table() string {
	return b.quote(b.compiler.registry.Table())
}

func (b *Builder) finish(sql string, bindings []any) Statement {
	return Statement{SQL: dialect.Render(b.compiler.dialect, sql), Bindings: bindings}
}

// Select builds SELECT <columns> FROM <table> [WHERE] [ORDER BY] [LIMIT].
// Columns are listed explicitly in declaration order.
func (b *Builder) Select(q Query) (Statement, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, col := range b.compiler.registry.Columns() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quote(col.Name))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table())

	var bindings []any
	if q.Where != nil {
		compiled, err := b.compiler.Compile(q.Where)
		if err != nil {
			return Statement{}, fmt.Errorf("compile where: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(compiled.Fragment)
		bindings = compiled.Bindings
	}

	if q.Sort != nil {
		if _, ok := b.compiler.registry.ByColumn(q.Sort.Column.Name); !ok {
			return Statement{}, errorf(ErrCodeUnknownField, nil, "sort column %q is not on %s", q.Sort.Column.Name, b.compiler.registry.Table())
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.quote(q.Sort.Column.Name))
		sb.WriteByte(' ')
		sb.WriteString(q.Sort.Direction.String())
	}

	if q.Limit != nil {
		if *q.Limit < 0 {
			return Statement{}, errorf(ErrCodeInvalidLimit, nil, "limit must not be negative, got %d", *q.Limit)
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*q.Limit))
	}

	return b.finish(sb.String(), bindings), nil
}

// Delete builds DELETE FROM <table> [WHERE]. A nil predicate deletes every row.
func (b *Builder) Delete(where predicate.Expr) (Statement, error) {
	sql := "DELETE FROM " + b.table()
	if where == nil {
		return b.finish(sql, nil), nil
	}

	compiled, err := b.compiler.Compile(where)
	if err != nil {
		return Statement{}, fmt.Errorf("compile where: %w", err)
	}
	return b.finish(sql+" WHERE "+compiled.Fragment, compiled.Bindings), nil
}

// Insert builds a conflict-ignoring INSERT for row, whose keys are field
// identifiers. Columns follow declaration order. An auto-increment primary
// key that is absent or nil is left to the backend, and when the dialect
// supports it the statement returns the key.
func (b *Builder) Insert(row map[schema.FieldID]any) (Statement, error) {
	reg := b.compiler.registry
	for id := range row {
		if _, ok := reg.Find(id); !ok {
			return Statement{}, errorf(ErrCodeUnknownField, nil, "field %q is not registered on %s", id, reg.Model())
		}
	}

	var names []string
	var bindings []any
	for _, col := range reg.Columns() {
		v, present := row[col.Field]
		if !present {
			continue
		}
		n, err := value.Normalize(v)
		if err != nil {
			return Statement{}, errorf(ErrCodeInvalidLiteral, nil, "field %s: %v", col.Field, err)
		}
		if n == nil && col.IsAutoIncrement() {
			continue
		}
		names = append(names, b.quote(col.Name))
		bindings = append(bindings, n)
	}

	d := b.compiler.dialect
	verb, suffix := d.InsertIgnore()

	var sb strings.Builder
	sb.WriteString(verb)
	sb.WriteString(" INTO ")
	sb.WriteString(b.table())
	switch {
	case len(names) > 0:
		sb.WriteString(" (")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.TrimSuffix(strings.Repeat(dialect.Marker+", ", len(names)), ", "))
		sb.WriteByte(')')
	case d.Name() == "mysql":
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	sb.WriteString(suffix)

	if pk, ok := reg.PrimaryKey(); ok && d.Returning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.quote(pk.Name))
	}

	return b.finish(sb.String(), bindings), nil
}

// CreateTable builds the DDL for the registry's table.
func (b *Builder) CreateTable(ifNotExists bool) Statement {
	d := b.compiler.dialect

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if ifNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(b.table())
	sb.WriteString(" (")

	for i, col := range b.compiler.registry.Columns() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quote(col.Name))
		sb.WriteByte(' ')
		sb.WriteString(d.ColumnType(col))

		auto := col.IsAutoIncrement()
		for _, k := range col.EffectiveConstraints() {
			if auto && k == schema.PrimaryKey {
				continue
			}
			if clause := d.ConstraintClause(col, k); clause != "" {
				sb.WriteByte(' ')
				sb.WriteString(clause)
			}
		}
	}
	sb.WriteByte(')')

	return Statement{SQL: sb.String()}
}

// DropTable builds DROP TABLE IF EXISTS for the registry's table.
func (b *Builder) DropTable() Statement {
	return Statement{SQL: "DROP TABLE IF EXISTS " + b.table()}
}
