package dialect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nakajima/serverdata/internal/schema"
)

// Option adjusts a dialect at construction.
type Option func(*settings)

type settings struct {
	in        InBinding
	returning bool
}

// WithInBinding selects the IN-list convention.
func WithInBinding(b InBinding) Option {
	return func(s *settings) { s.in = b }
}

// WithArrayIn binds IN lists as one array parameter.
func WithArrayIn() Option { return WithInBinding(ArrayBind) }

// WithScalarIn binds IN lists as one parameter per element.
func WithScalarIn() Option { return WithInBinding(ScalarBind) }

// WithoutReturning forces the last-insert-id identity strategy.
func WithoutReturning() Option {
	return func(s *settings) { s.returning = false }
}

// WithReturning selects the RETURNING identity strategy where the backend
// has one.
func WithReturning(on bool) Option {
	return func(s *settings) { s.returning = on }
}

func apply(s settings, opts []Option) settings {
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) InBinding() InBinding { return s.in }

// commonConstraint renders the constraints every dialect spells the same way.
func commonConstraint(c schema.Constraint) string {
	switch c {
	case schema.Unique:
		return "UNIQUE"
	case schema.NotNull:
		return "NOT NULL"
	case schema.PrimaryKey:
		return "PRIMARY KEY"
	default:
		return ""
	}
}

// jsonArray encodes a list for backends that unpack JSON arrays in SQL.
// Blobs and times have no faithful JSON form there and are refused.
func jsonArray(values []any) (any, error) {
	for i, v := range values {
		switch v.(type) {
		case []byte, time.Time:
			return nil, fmt.Errorf("list index %d: %T cannot be bound as a JSON array element", i, v)
		}
	}
	if values == nil {
		values = []any{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode array binding: %w", err)
	}
	return string(raw), nil
}
