package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/value"
)

// Row is an untyped record keyed by field identifier.
type Row map[schema.FieldID]any

// InsertResult describes the outcome of a conflict-ignoring insert.
type InsertResult struct {
	// Inserted is false when the backend ignored the row on a conflict.
	Inserted bool

	// Key is the primary key of the inserted row: the caller's value when
	// one was given, otherwise the backend-assigned one. Nil when the record
	// type has no primary key.
	Key any
}

// Table runs statements for one registry against a container.
type Table struct {
	container *Container
	registry  *schema.Registry
	builder   *querysql.Builder
}

// Table returns the table of reg in c.
func (c *Container) Table(reg *schema.Registry) *Table {
	return &Table{
		container: c,
		registry:  reg,
		builder:   querysql.NewBuilder(reg, c.dialect),
	}
}

// Name is the table name.
func (t *Table) Name() string { return t.registry.Table() }

// Registry returns the table's column registry.
func (t *Table) Registry() *schema.Registry { return t.registry }

// Builder returns the statement builder for the table.
func (t *Table) Builder() *querysql.Builder { return t.builder }

// Exists reports whether the table has been created.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	return t.container.HasTable(ctx, t.Name())
}

// Create creates the table if it does not exist.
func (t *Table) Create(ctx context.Context) error {
	if _, err := t.container.exec(ctx, t.container.db, "create table", t.builder.CreateTable(true)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name(), err)
	}
	return nil
}

// Insert inserts row, ignoring it on a conflict.
func (t *Table) Insert(ctx context.Context, row Row) (InsertResult, error) {
	return t.insert(ctx, t.container.db, row)
}

func (t *Table) insert(ctx context.Context, q querier, row Row) (InsertResult, error) {
	stmt, err := t.builder.Insert(row)
	if err != nil {
		return InsertResult{}, err
	}

	pk, hasKey := t.registry.PrimaryKey()
	var given any
	if hasKey {
		if given, err = value.Normalize(row[pk.Field]); err != nil {
			return InsertResult{}, fmt.Errorf("primary key: %w", err)
		}
	}

	d := t.container.dialect
	if hasKey && d.Returning() {
		t.container.trace("insert", stmt)
		var key any
		err := q.QueryRowContext(ctx, stmt.SQL, stmt.Bindings...).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			t.container.logger.Debug("insert ignored", "table", t.Name())
			return InsertResult{}, nil
		}
		if err != nil {
			return InsertResult{}, fmt.Errorf("insert into %s: %w", t.Name(), err)
		}
		return InsertResult{Inserted: true, Key: key}, nil
	}

	conn, release, err := pin(ctx, q)
	if err != nil {
		return InsertResult{}, err
	}
	defer release()

	res, err := t.container.exec(ctx, conn, "insert", stmt)
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert into %s: %w", t.Name(), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert into %s: %w", t.Name(), err)
	}
	if affected == 0 {
		t.container.logger.Debug("insert ignored", "table", t.Name())
		return InsertResult{}, nil
	}

	out := InsertResult{Inserted: true, Key: given}
	if hasKey && given == nil && pk.IsAutoIncrement() && d.LastInsertID() != "" {
		var key int64
		if err := conn.QueryRowContext(ctx, d.LastInsertID()).Scan(&key); err != nil {
			return InsertResult{}, fmt.Errorf("read generated key of %s: %w", t.Name(), err)
		}
		out.Key = key
	}
	return out, nil
}

// Select runs q and returns the matching rows. Text columns come back as
// strings; every other value is what the driver produced.
func (t *Table) Select(ctx context.Context, q querysql.Query) ([]Row, error) {
	cols := t.registry.Columns()
	var out []Row
	err := t.scan(ctx, t.container.db, q, func(values []any) error {
		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok && col.StorageType == schema.Text {
				v = string(b)
			}
			row[col.Field] = v
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func (t *Table) scan(ctx context.Context, q querier, query querysql.Query, each func(values []any) error) error {
	stmt, err := t.builder.Select(query)
	if err != nil {
		return err
	}

	t.container.trace("select", stmt)
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Bindings...)
	if err != nil {
		return fmt.Errorf("select from %s: %w", t.Name(), err)
	}
	defer rows.Close()

	n := t.registry.Len()
	for rows.Next() {
		values := make([]any, n)
		dest := make([]any, n)
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s row: %w", t.Name(), err)
		}
		if err := each(values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("select from %s: %w", t.Name(), err)
	}
	return nil
}

// Delete deletes the rows matching where, or every row when where is nil,
// and reports how many were removed.
func (t *Table) Delete(ctx context.Context, where predicate.Expr) (int64, error) {
	stmt, err := t.builder.Delete(where)
	if err != nil {
		return 0, err
	}
	res, err := t.container.exec(ctx, t.container.db, "delete", stmt)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name(), err)
	}
	return res.RowsAffected()
}
