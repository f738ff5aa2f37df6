package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/querysql"
	"github.com/nakajima/serverdata/internal/schema"
)

// ListOptions narrows a List call. The zero value lists every row in
// backend order.
type ListOptions struct {
	Where predicate.Expr
	Sort  *querysql.Sort
	Limit *int
}

// PersistentStore reads and writes records of type T, a struct registered
// through schema.For.
type PersistentStore[T any] struct {
	table *Table
	ready atomic.Bool
}

// For returns the store for T in c.
func For[T any](c *Container) (*PersistentStore[T], error) {
	reg, err := schema.For[T]()
	if err != nil {
		return nil, err
	}
	return &PersistentStore[T]{table: c.Table(reg)}, nil
}

// MustFor is like For but panics on a registration error.
func MustFor[T any](c *Container) *PersistentStore[T] {
	s, err := For[T](c)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the untyped table the store writes to.
func (s *PersistentStore[T]) Table() *Table { return s.table }

func (s *PersistentStore[T]) registry() *schema.Registry { return s.table.registry }

// Setup creates the table. An existing table is left as it is.
func (s *PersistentStore[T]) Setup(ctx context.Context) error {
	exists, err := s.table.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.table.container.logger.Info("already found table, skipping setup", "table", s.table.Name())
		s.ready.Store(true)
		return nil
	}
	if err := s.table.Create(ctx); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

func (s *PersistentStore[T]) ensureTable(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	exists, err := s.table.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return &UnknownTableError{Table: s.table.Name()}
	}
	s.ready.Store(true)
	return nil
}

// Save inserts rec. When the backend assigns the primary key it is written
// back to rec. A row ignored on a conflict leaves rec unchanged.
func (s *PersistentStore[T]) Save(ctx context.Context, rec *T) error {
	if rec == nil {
		return errors.New("save: nil record")
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	v := reflect.ValueOf(rec).Elem()
	row, err := encodeRecord(s.registry(), v)
	if err != nil {
		return err
	}
	res, err := s.table.insert(ctx, s.table.container.db, row)
	if err != nil {
		return err
	}
	return s.assignKey(v, res)
}

// SaveAll inserts every record in one transaction. Keys are assigned only
// once the transaction has committed.
func (s *PersistentStore[T]) SaveAll(ctx context.Context, recs []*T) (err error) {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	rows := make([]Row, len(recs))
	for i, rec := range recs {
		if rec == nil {
			return fmt.Errorf("save all: record %d is nil", i)
		}
		if rows[i], err = encodeRecord(s.registry(), reflect.ValueOf(rec).Elem()); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	tx, err := s.table.container.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	results := make([]InsertResult, len(rows))
	for i, row := range rows {
		if results[i], err = s.table.insert(ctx, tx, row); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for i, rec := range recs {
		if err = s.assignKey(reflect.ValueOf(rec).Elem(), results[i]); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func (s *PersistentStore[T]) assignKey(v reflect.Value, res InsertResult) error {
	pk, ok := s.registry().PrimaryKey()
	if !ok || !res.Inserted || res.Key == nil {
		return nil
	}
	if err := assign(v.FieldByIndex(pk.Index), res.Key); err != nil {
		return &DecodeError{Column: pk.Name, Err: err}
	}
	return nil
}

// Find returns the record whose primary key equals id.
func (s *PersistentStore[T]) Find(ctx context.Context, id any) (*T, error) {
	pk, ok := s.registry().PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("find: %s has no primary key", s.registry().Model())
	}
	return s.First(ctx, predicate.Equal(predicate.Field(pk.Field), predicate.Value(id)), nil)
}

// First returns the first record matching where in sort order.
func (s *PersistentStore[T]) First(ctx context.Context, where predicate.Expr, sort *querysql.Sort) (*T, error) {
	recs, err := s.List(ctx, ListOptions{Where: where, Sort: sort, Limit: querysql.Limit(1)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// List returns the records selected by opts.
func (s *PersistentStore[T]) List(ctx context.Context, opts ListOptions) ([]*T, error) {
	q := querysql.Query{Where: opts.Where, Sort: opts.Sort, Limit: opts.Limit}

	var out []*T
	err := s.table.scan(ctx, s.table.container.db, q, func(values []any) error {
		rec := new(T)
		if err := decodeRecord(s.registry(), reflect.ValueOf(rec).Elem(), values); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete deletes the records matching where, or all of them when where is
// nil.
func (s *PersistentStore[T]) Delete(ctx context.Context, where predicate.Expr) (int64, error) {
	return s.table.Delete(ctx, where)
}
