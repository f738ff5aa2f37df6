package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nakajima/serverdata/internal/modelspec"
	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/store"
	"github.com/nakajima/serverdata/internal/testutil"
)

// Harness runs the cases of one scenario against one table.
type Harness struct {
	table  *store.Table
	seq    *testutil.Sequence
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory SQLite database. in selects the
// IN-list convention ("scalar" or "array"); empty keeps the dialect's
// default.
//
// Execution flow:
// 1. Compile the scenario's CUE and register the model
// 2. Create the table in a fresh in-memory database
// 3. Insert the seed rows
// 4. Run each case in order and check its expectations
//
// The error return is for failures outside any case: a model that does
// not compile, a seed row that cannot be inserted. Case failures are
// recorded in the result.
func Run(scenario *Scenario, in string) (*Result, error) {
	ctx := context.Background()

	reg, err := registry(scenario)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := testutil.OpenMemory(ctx, store.Config{InBinding: in, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer c.Close()

	h := &Harness{
		table:  c.Table(reg),
		seq:    testutil.NewSequence(),
		logger: logger,
	}
	if err := h.table.Create(ctx); err != nil {
		return nil, err
	}
	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to insert seed rows: %w", err)
	}

	result := NewResult()
	result.Columns = reg.Columns()
	for _, tc := range scenario.Cases {
		cr := h.runCase(ctx, tc)
		for _, msg := range checkCase(reg, tc, cr) {
			result.AddError(fmt.Sprintf("%s: %s", tc.Name, msg))
		}
		result.Cases = append(result.Cases, cr)
	}
	return result, nil
}

func registry(s *Scenario) (*schema.Registry, error) {
	models, err := modelspec.CompileSource(s.Name+".cue", s.CUE)
	if err != nil {
		return nil, err
	}

	var model *schema.Model
	switch {
	case s.Model != "":
		for i := range models {
			if models[i].Name == s.Model {
				model = &models[i]
			}
		}
		if model == nil {
			return nil, fmt.Errorf("model %q is not declared", s.Model)
		}
	case len(models) == 1:
		model = &models[0]
	default:
		return nil, fmt.Errorf("cue declares %d models; name one with model", len(models))
	}

	return schema.Build(*model)
}

func (h *Harness) seed(ctx context.Context, rows []map[string]any) error {
	reg := h.table.Registry()
	for i, raw := range rows {
		row := make(store.Row, len(raw))
		for name, v := range raw {
			col, ok := reg.Resolve(name)
			if !ok {
				return fmt.Errorf("seed[%d]: unknown field %q", i, name)
			}
			row[col.Field] = v
		}
		res, err := h.table.Insert(ctx, row)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if !res.Inserted {
			return fmt.Errorf("seed[%d]: row conflicts with an earlier row", i)
		}
	}
	h.logger.Debug("seeded", "table", h.table.Name(), "rows", len(rows))
	return nil
}

func (h *Harness) runCase(ctx context.Context, tc Case) CaseResult {
	cr := CaseResult{Seq: h.seq.Next(), Name: tc.Name}
	reg := h.table.Registry()

	var where predicate.Expr
	if tc.Where != "" {
		e, err := predicate.Parse(tc.Where, predicate.ForRegistry(reg, tc.Params))
		if err != nil {
			cr.Err = err
			return cr
		}
		where = e
	}

	builder := h.table.Builder()
	if tc.Delete {
		stmt, err := builder.Delete(where)
		if err != nil {
			cr.Err = err
			return cr
		}
		cr.SQL, cr.Bindings = stmt.SQL, stmt.Bindings
		cr.Deleted, cr.Err = h.table.Delete(ctx, where)
		return cr
	}

	q := querysql.Query{Where: where, Limit: tc.Limit}
	if tc.Sort != "" {
		s, err := querysql.ParseSort(reg, tc.Sort)
		if err != nil {
			cr.Err = err
			return cr
		}
		q.Sort = &s
	}

	stmt, err := builder.Select(q)
	if err != nil {
		cr.Err = err
		return cr
	}
	cr.SQL, cr.Bindings = stmt.SQL, stmt.Bindings
	cr.Rows, cr.Err = h.table.Select(ctx, q)
	return cr
}
