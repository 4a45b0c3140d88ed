// Package sourcetest provides an in-memory database/sql driver and matching
// dialect for exercising extraction without a database server.
//
// A Fixture holds tables, injected failures and counters. The driver refuses
// to run two queries on the same connection at once, like most real drivers,
// so tests can prove the pool serializes access.
package sourcetest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

const DriverName = "sourcetest"

const (
	listTablesQuery  = "LIST TABLES"
	listColumnsQuery = "LIST COLUMNS"
	selectPrefix     = "SELECT * FROM "
)

var (
	registryMu sync.Mutex
	registry   = map[string]*Fixture{}
	seq        int
)

func init() {
	sql.Register(DriverName, fakeDriver{})
}

type Table struct {
	Name    string
	Columns []string
	// Types holds optional database type names, one per column.
	Types []string
	Rows  [][]driver.Value
}

type Fixture struct {
	dsn string

	mu         sync.Mutex
	tables     []Table
	pingErr    error
	tablesErr  error
	columnsErr map[string]error
	dataErr    map[string]error
	delay      time.Duration

	opens, closes, open, maxOpen int
	queries                      int
	overlapped                   bool
}

// New registers a fixture for the lifetime of t.
func New(t testing.TB, tables ...Table) *Fixture {
	t.Helper()
	registryMu.Lock()
	seq++
	f := &Fixture{
		dsn:        fmt.Sprintf("fixture-%d", seq),
		tables:     tables,
		columnsErr: map[string]error{},
		dataErr:    map[string]error{},
	}
	registry[f.dsn] = f
	registryMu.Unlock()

	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, f.dsn)
		registryMu.Unlock()
	})
	return f
}

// Dialect returns a dialect whose DSN points at f.
func (f *Fixture) Dialect() source.Dialect { return dialect{dsn: f.dsn} }

// Config returns a connection config with the given pool size.
func (f *Fixture) Config(pool int) source.ConnectionConfig {
	return source.ConnectionConfig{Database: f.dsn, MaxOpenConns: pool}
}

func (f *Fixture) FailPing(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *Fixture) FailTables(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tablesErr = err
}

func (f *Fixture) FailColumns(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columnsErr[table] = err
}

func (f *Fixture) FailData(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataErr[table] = err
}

// SetTable replaces or appends a table, simulating DDL between queries.
func (f *Fixture) SetTable(t Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tables {
		if f.tables[i].Name == t.Name {
			f.tables[i] = t
			return
		}
	}
	f.tables = append(f.tables, t)
}

// SetDelay makes every query wait d before answering, or until its context
// ends.
func (f *Fixture) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *Fixture) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *Fixture) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// MaxOpen is the highest number of simultaneously open driver connections.
func (f *Fixture) MaxOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

func (f *Fixture) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Overlapped reports whether a query was ever issued on a connection that was
// still busy with another one.
func (f *Fixture) Overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlapped
}

func lookup(dsn string) *Fixture {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[dsn]
}

type dialect struct{ dsn string }

func (dialect) Name() string                                 { return DriverName }
func (dialect) DriverName() string                           { return DriverName }
func (dialect) DefaultPort() int                             { return 0 }
func (dialect) DefaultSchema(source.ConnectionConfig) string { return "test" }

func (d dialect) DSN(source.ConnectionConfig) (string, error) { return d.dsn, nil }

func (dialect) ListTablesQuery(schema string) (string, []any) {
	return listTablesQuery, []any{schema}
}

func (dialect) ListColumnsQuery(schema, table string) (string, []any) {
	return listColumnsQuery, []any{schema, table}
}

func (dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// unquote splits a chain of bracket-quoted identifiers such as [a].[b]].c].
func unquote(s string) ([]string, error) {
	var out []string
	for len(s) > 0 {
		if s[0] == '.' && len(out) > 0 {
			s = s[1:]
		}
		if len(s) == 0 || s[0] != '[' {
			return nil, fmt.Errorf("sourcetest: bad identifier %q", s)
		}
		var b strings.Builder
		i := 1
		for ; i < len(s); i++ {
			if s[i] == ']' {
				if i+1 < len(s) && s[i+1] == ']' {
					b.WriteByte(']')
					i++
					continue
				}
				break
			}
			b.WriteByte(s[i])
		}
		if i >= len(s) {
			return nil, fmt.Errorf("sourcetest: unterminated identifier %q", s)
		}
		out = append(out, b.String())
		s = s[i+1:]
	}
	return out, nil
}

type fakeDriver struct{}

func (fakeDriver) Open(dsn string) (driver.Conn, error) {
	f := lookup(dsn)
	if f == nil {
		return nil, fmt.Errorf("sourcetest: unknown fixture %q", dsn)
	}
	f.mu.Lock()
	f.opens++
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	f.mu.Unlock()
	return &conn{f: f}, nil
}

type conn struct {
	f    *Fixture
	busy atomic.Bool
}

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("sourcetest: prepare not supported")
}

func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("sourcetest: transactions not supported")
}

func (c *conn) Close() error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.closes++
	c.f.open--
	return nil
}

func (c *conn) Ping(context.Context) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	return c.f.pingErr
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.f.mu.Lock()
		c.f.overlapped = true
		c.f.mu.Unlock()
		return nil, errors.New("sourcetest: connection busy")
	}
	r, err := c.f.query(ctx, query, args)
	if err != nil {
		c.busy.Store(false)
		return nil, err
	}
	r.release = func() { c.busy.Store(false) }
	return r, nil
}

func (f *Fixture) query(ctx context.Context, query string, args []driver.NamedValue) (*rows, error) {
	f.mu.Lock()
	f.queries++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case query == listTablesQuery:
		if f.tablesErr != nil {
			return nil, f.tablesErr
		}
		r := &rows{cols: []string{"name"}}
		for _, t := range f.tables {
			r.data = append(r.data, []driver.Value{t.Name})
		}
		return r, nil

	case query == listColumnsQuery:
		if len(args) != 2 {
			return nil, fmt.Errorf("sourcetest: expected 2 args, got %d", len(args))
		}
		table, _ := args[1].Value.(string)
		if err := f.columnsErr[table]; err != nil {
			return nil, err
		}
		r := &rows{cols: []string{"name"}}
		if t, ok := f.table(table); ok {
			for _, c := range t.Columns {
				r.data = append(r.data, []driver.Value{c})
			}
		}
		return r, nil

	case strings.HasPrefix(query, selectPrefix):
		idents, err := unquote(strings.TrimPrefix(query, selectPrefix))
		if err != nil {
			return nil, err
		}
		table := idents[len(idents)-1]
		if err := f.dataErr[table]; err != nil {
			return nil, err
		}
		t, ok := f.table(table)
		if !ok {
			return nil, fmt.Errorf("sourcetest: no such table: %s", table)
		}
		return &rows{cols: t.Columns, types: t.Types, data: t.Rows}, nil

	default:
		return nil, fmt.Errorf("sourcetest: unsupported query %q", query)
	}
}

func (f *Fixture) table(name string) (Table, bool) {
	for _, t := range f.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

type rows struct {
	cols    []string
	types   []string
	data    [][]driver.Value
	pos     int
	closed  bool
	release func()
}

func (r *rows) Columns() []string { return r.cols }

func (r *rows) Close() error {
	if !r.closed {
		r.closed = true
		if r.release != nil {
			r.release()
		}
	}
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(i int) string {
	if i < len(r.types) {
		return r.types[i]
	}
	return ""
}
