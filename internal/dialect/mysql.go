package dialect

import (
	"github.com/nakajima/serverdata/internal/schema"
)

type mysql struct {
	settings
}

// MySQL targets github.com/go-sql-driver/mysql. There is no RETURNING, so
// generated keys come from LAST_INSERT_ID() on the inserting connection.
// WithArrayIn binds lists as one JSON array tested with MEMBER OF (8.0.17+).
func MySQL(opts ...Option) Dialect {
	s := apply(settings{in: ScalarBind}, opts)
	s.returning = false
	return mysql{s}
}

func (mysql) Name() string              { return "mysql" }
func (mysql) Quote(ident string) string { return quoteWith("`", ident) }
func (mysql) Placeholder(int) string    { return Marker }

func (mysql) ArrayMembership(subject, placeholder string) string {
	return subject + " MEMBER OF (CAST(" + placeholder + " AS JSON))"
}

func (mysql) BindArray(values []any) (any, error) {
	return jsonArray(values)
}

func (mysql) ColumnType(col schema.ColumnDefinition) string {
	switch col.StorageType {
	case schema.BigInt:
		return "BIGINT"
	case schema.Real:
		return "DOUBLE"
	case schema.Text:
		// TEXT columns cannot be indexed without a prefix length.
		if col.Has(schema.Unique) || col.IsPrimaryKey() {
			return "VARCHAR(255)"
		}
		return "TEXT"
	case schema.Blob:
		return "LONGBLOB"
	case schema.DateTime:
		return "DATETIME(6)"
	default:
		return string(col.StorageType)
	}
}

func (mysql) ConstraintClause(_ schema.ColumnDefinition, c schema.Constraint) string {
	if c == schema.PrimaryKeyAutoIncrement {
		return "PRIMARY KEY AUTO_INCREMENT"
	}
	return commonConstraint(c)
}

func (mysql) Returning() bool      { return false }
func (mysql) LastInsertID() string { return "SELECT LAST_INSERT_ID()" }

func (mysql) InsertIgnore() (string, string) { return "INSERT IGNORE", "" }

func (mysql) ListTables() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
}

func (m mysql) Truncate(table string) string {
	return "TRUNCATE TABLE " + m.Quote(table)
}
