package dialect

import (
	"github.com/nakajima/serverdata/internal/schema"
)

type generic struct {
	settings
}

// Generic is the neutral dialect: backtick quoting, "?" placeholders and
// array-bound IN lists written as `col` IN ?. Its output is what the
// compiler examples document; it is not tied to a driver.
func Generic(opts ...Option) Dialect {
	return generic{apply(settings{in: ArrayBind, returning: true}, opts)}
}

func (generic) Name() string              { return "generic" }
func (generic) Quote(ident string) string { return quoteWith("`", ident) }
func (generic) Placeholder(int) string    { return Marker }

func (generic) ArrayMembership(subject, placeholder string) string {
	return subject + " IN " + placeholder
}

func (generic) BindArray(values []any) (any, error) {
	return append([]any{}, values...), nil
}

func (generic) ColumnType(col schema.ColumnDefinition) string {
	return string(col.StorageType)
}

func (generic) ConstraintClause(_ schema.ColumnDefinition, c schema.Constraint) string {
	if c == schema.PrimaryKeyAutoIncrement {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return commonConstraint(c)
}

func (g generic) Returning() bool { return g.returning }

func (g generic) LastInsertID() string {
	if g.returning {
		return ""
	}
	return "SELECT LAST_INSERT_ID()"
}

func (generic) InsertIgnore() (string, string) { return "INSERT", "" }

func (generic) ListTables() string {
	return "SELECT table_name FROM information_schema.tables ORDER BY table_name"
}

func (g generic) Truncate(table string) string {
	return "DELETE FROM " + g.Quote(table)
}
