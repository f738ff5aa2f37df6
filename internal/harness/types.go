package harness

import (
	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/store"
)

// CaseResult records what one case executed and produced.
type CaseResult struct {
	Seq      int64
	Name     string
	SQL      string
	Bindings []any

	// Rows are the selected rows in the order the database returned them.
	Rows    []store.Row
	Deleted int64

	// Err is the error the case ended with, expected or not.
	Err error
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every case met its expectations.
	Pass bool

	// Columns describe the queried table in declaration order.
	Columns []schema.ColumnDefinition

	Cases []CaseResult

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
