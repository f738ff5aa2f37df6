package dialect

import (
	"github.com/nakajima/serverdata/internal/schema"
)

type sqlite struct {
	settings
}

// SQLite targets github.com/mattn/go-sqlite3. IN lists are scalar-bound by
// default; WithArrayIn unpacks one JSON-encoded parameter with json_each.
// RETURNING is used unless WithoutReturning is given, in which case the key
// is read back with last_insert_rowid().
func SQLite(opts ...Option) Dialect {
	return sqlite{apply(settings{in: ScalarBind, returning: true}, opts)}
}

func (sqlite) Name() string              { return "sqlite" }
func (sqlite) Quote(ident string) string { return quoteWith("`", ident) }
func (sqlite) Placeholder(int) string    { return Marker }

func (sqlite) ArrayMembership(subject, placeholder string) string {
	return subject + " IN (SELECT value FROM json_each(" + placeholder + "))"
}

func (sqlite) BindArray(values []any) (any, error) {
	return jsonArray(values)
}

func (sqlite) ColumnType(col schema.ColumnDefinition) string {
	switch col.StorageType {
	case schema.BigInt:
		// INTEGER PRIMARY KEY is the rowid alias; BIGINT would not be.
		return "INTEGER"
	default:
		return string(col.StorageType)
	}
}

func (sqlite) ConstraintClause(_ schema.ColumnDefinition, c schema.Constraint) string {
	if c == schema.PrimaryKeyAutoIncrement {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return commonConstraint(c)
}

func (s sqlite) Returning() bool { return s.returning }

func (s sqlite) LastInsertID() string {
	if s.returning {
		return ""
	}
	return "SELECT last_insert_rowid()"
}

func (sqlite) InsertIgnore() (string, string) { return "INSERT OR IGNORE", "" }

func (sqlite) ListTables() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (s sqlite) Truncate(table string) string {
	return "DELETE FROM " + s.Quote(table)
}
