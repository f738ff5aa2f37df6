package dialect

import (
	"strconv"

	"github.com/lib/pq"

	"github.com/nakajima/serverdata/internal/schema"
)

type postgres struct {
	settings
}

// Postgres targets github.com/lib/pq: "$n" placeholders, double-quoted
// identifiers, RETURNING, and array-bound IN lists written as = ANY($n).
func Postgres(opts ...Option) Dialect {
	return postgres{apply(settings{in: ArrayBind, returning: true}, opts)}
}

func (postgres) Name() string              { return "postgres" }
func (postgres) Quote(ident string) string { return quoteWith(`"`, ident) }
func (postgres) Placeholder(n int) string  { return "$" + strconv.Itoa(n) }

func (postgres) ArrayMembership(subject, placeholder string) string {
	return subject + " = ANY(" + placeholder + ")"
}

// BindArray picks the typed pq array for homogeneous lists so the server
// sees a properly typed array literal.
func (postgres) BindArray(values []any) (any, error) {
	if len(values) == 0 {
		return pq.GenericArray{A: []any{}}, nil
	}

	switch values[0].(type) {
	case int64:
		out := make(pq.Int64Array, 0, len(values))
		for _, v := range values {
			i, ok := v.(int64)
			if !ok {
				return pq.GenericArray{A: values}, nil
			}
			out = append(out, i)
		}
		return out, nil
	case float64:
		out := make(pq.Float64Array, 0, len(values))
		for _, v := range values {
			f, ok := v.(float64)
			if !ok {
				return pq.GenericArray{A: values}, nil
			}
			out = append(out, f)
		}
		return out, nil
	case string:
		out := make(pq.StringArray, 0, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return pq.GenericArray{A: values}, nil
			}
			out = append(out, s)
		}
		return out, nil
	case []byte:
		out := make(pq.ByteaArray, 0, len(values))
		for _, v := range values {
			b, ok := v.([]byte)
			if !ok {
				return pq.GenericArray{A: values}, nil
			}
			out = append(out, b)
		}
		return out, nil
	}
	return pq.GenericArray{A: values}, nil
}

func (postgres) ColumnType(col schema.ColumnDefinition) string {
	switch col.StorageType {
	case schema.BigInt:
		if col.IsAutoIncrement() {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case schema.Real:
		return "DOUBLE PRECISION"
	case schema.Blob:
		return "BYTEA"
	case schema.DateTime:
		return "TIMESTAMPTZ"
	default:
		return string(col.StorageType)
	}
}

func (postgres) ConstraintClause(_ schema.ColumnDefinition, c schema.Constraint) string {
	if c == schema.PrimaryKeyAutoIncrement {
		return "PRIMARY KEY"
	}
	return commonConstraint(c)
}

func (p postgres) Returning() bool { return p.returning }

func (p postgres) LastInsertID() string {
	if p.returning {
		return ""
	}
	return "SELECT lastval()"
}

func (postgres) InsertIgnore() (string, string) { return "INSERT", " ON CONFLICT DO NOTHING" }

func (postgres) ListTables() string {
	return "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename"
}

func (p postgres) Truncate(table string) string {
	return "TRUNCATE TABLE " + p.Quote(table)
}
