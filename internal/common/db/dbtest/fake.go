// Package dbtest provides a scripted db.Database for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"sync"

	"ojcore/internal/common/db"
)

// Call records one statement sent to the fake.
type Call struct {
	Query string
	Args  []interface{}
}

// Fake answers queries from QueryFunc and statements from ExecFunc.
type Fake struct {
	QueryFunc func(query string, args []interface{}) ([][]interface{}, error)
	ExecFunc  func(query string, args []interface{}) (int64, error)

	mu      sync.Mutex
	queries []Call
	execs   []Call
}

var _ db.Database = (*Fake)(nil)

func (f *Fake) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, Call{Query: query, Args: args})
	f.mu.Unlock()
	if f.QueryFunc == nil {
		return &rows{}, nil
	}
	data, err := f.QueryFunc(query, args)
	if err != nil {
		return nil, err
	}
	return &rows{data: data, pos: -1}, nil
}

func (f *Fake) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	r, err := f.Query(ctx, query, args...)
	if err != nil {
		return row{err: err}
	}
	rs := r.(*rows)
	if len(rs.data) == 0 {
		return row{err: sql.ErrNoRows}
	}
	return row{values: rs.data[0]}
}

func (f *Fake) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	f.mu.Lock()
	f.execs = append(f.execs, Call{Query: query, Args: args})
	f.mu.Unlock()
	if f.ExecFunc == nil {
		return result(1), nil
	}
	n, err := f.ExecFunc(query, args)
	if err != nil {
		return nil, err
	}
	return result(n), nil
}

func (f *Fake) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(&tx{Fake: f})
}

func (f *Fake) Ping(ctx context.Context) error { return nil }
func (f *Fake) Close() error                   { return nil }

// Queries returns the recorded reads.
func (f *Fake) Queries() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.queries...)
}

// Execs returns the recorded writes.
func (f *Fake) Execs() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.execs...)
}

type tx struct{ *Fake }

func (t *tx) Commit() error   { return nil }
func (t *tx) Rollback() error { return nil }

type result int64

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return int64(r), nil }

type rows struct {
	data [][]interface{}
	pos  int
}

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Scan(dest ...interface{}) error {
	return assign(r.data[r.pos], dest)
}

func (r *rows) Close() error { return nil }
func (r *rows) Err() error   { return nil }

type row struct {
	values []interface{}
	err    error
}

func (r row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []interface{}, dest []interface{}) error {
	if len(values) != len(dest) {
		return fmt.Errorf("dbtest: %d values for %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		if valuer, ok := v.(driver.Valuer); ok {
			var err error
			if v, err = valuer.Value(); err != nil {
				return err
			}
		}
		if s, ok := dest[i].(sql.Scanner); ok {
			if err := s.Scan(v); err != nil {
				return err
			}
			continue
		}
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("dbtest: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		src := reflect.ValueOf(v)
		if !src.Type().ConvertibleTo(elem.Type()) {
			return fmt.Errorf("dbtest: cannot assign %T to %s", v, elem.Type())
		}
		elem.Set(src.Convert(elem.Type()))
	}
	return nil
}
