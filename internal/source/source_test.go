package source_test

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/mysql"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/sourcetest"
)

func openFixture(t *testing.T, f *sourcetest.Fixture, pool int) *source.Connection {
	t.Helper()
	conn, err := source.Open(context.Background(), f.Config(pool), f.Dialect())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenClose_ReleasesEveryConnection(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "t", Columns: []string{"id"}})
	conn, err := source.Open(context.Background(), f.Config(1), f.Dialect())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.Opens() != 1 {
		t.Fatalf("expected 1 driver connection after open, got %d", f.Opens())
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.Opens() != f.Closes() {
		t.Fatalf("dangling connections: opens=%d closes=%d", f.Opens(), f.Closes())
	}
}

func TestClose_Idempotent(t *testing.T) {
	f := sourcetest.New(t)
	conn, err := source.Open(context.Background(), f.Config(1), f.Dialect())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	var never *source.Connection
	if err := never.Close(); err != nil {
		t.Fatalf("close on nil connection: %v", err)
	}
}

func TestOpen_PingFailureIsConnectionError(t *testing.T) {
	f := sourcetest.New(t)
	f.FailPing(errors.New("access denied for user"))

	conn, err := source.Open(context.Background(), f.Config(1), f.Dialect())
	if conn != nil {
		t.Fatalf("expected no connection on failure")
	}
	var ce *source.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %T: %v", err, err)
	}
	if ce.Driver != sourcetest.DriverName {
		t.Fatalf("expected driver name in error, got %q", ce.Driver)
	}
	if f.Opens() != f.Closes() {
		t.Fatalf("failed open leaked connections: opens=%d closes=%d", f.Opens(), f.Closes())
	}
}

func TestOpen_BadDSNLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := source.ConnectionConfig{Host: "db", Database: "shop", SSLMode: "sometimes"}
	_, err := source.Open(context.Background(), cfg, mysql.New())
	var ce *source.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if !strings.Contains(buf.String(), "connection failed") {
		t.Fatalf("expected failure status line, got %q", buf.String())
	}
}

func TestOpen_NilDialect(t *testing.T) {
	_, err := source.Open(context.Background(), source.ConnectionConfig{}, nil)
	var ce *source.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestListBaseTables_PreservesCatalogOrder(t *testing.T) {
	f := sourcetest.New(t,
		sourcetest.Table{Name: "zeta"},
		sourcetest.Table{Name: "alpha"},
		sourcetest.Table{Name: "mid"},
	)
	conn := openFixture(t, f, 1)
	tables, err := source.ListBaseTables(context.Background(), conn, conn.Schema())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("unexpected order: %v", tables)
	}
}

func TestListBaseTables_Failure(t *testing.T) {
	f := sourcetest.New(t)
	f.FailTables(errors.New("information_schema unavailable"))
	conn := openFixture(t, f, 1)

	_, err := source.ListBaseTables(context.Background(), conn, conn.Schema())
	var qe *source.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qe.Phase != source.PhaseListTables || qe.Table != "" {
		t.Fatalf("unexpected phase/table: %s %q", qe.Phase, qe.Table)
	}
}

func TestListColumns_Failure(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "b", Columns: []string{"x"}})
	f.FailColumns("b", errors.New("boom"))
	conn := openFixture(t, f, 1)

	_, err := source.ListColumns(context.Background(), conn, conn.Schema(), "b")
	var qe *source.QueryError
	if !errors.As(err, &qe) || qe.Phase != source.PhaseListColumns || qe.Table != "b" {
		t.Fatalf("expected list-columns QueryError for b, got %v", err)
	}
}

func TestListColumns_ZeroColumns(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "empty"})
	conn := openFixture(t, f, 1)
	cols, err := source.ListColumns(context.Background(), conn, conn.Schema(), "empty")
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	if cols == nil || len(cols) != 0 {
		t.Fatalf("expected empty slice, got %#v", cols)
	}
}

func TestListColumns_EmptyTableName(t *testing.T) {
	f := sourcetest.New(t)
	conn := openFixture(t, f, 1)
	_, err := source.ListColumns(context.Background(), conn, conn.Schema(), "")
	if !errors.Is(err, source.ErrEmptyTableName) {
		t.Fatalf("expected ErrEmptyTableName, got %v", err)
	}
}

func TestReadAllRows_RoundTrip(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{
		Name:    "T",
		Columns: []string{"id", "name", "score"},
		Rows: [][]driver.Value{
			{int64(3), "carol", 1.5},
			{int64(1), "alice", nil},
			{int64(2), "bob", 7.25},
		},
	})
	conn := openFixture(t, f, 1)

	rows, err := source.ReadAllRows(context.Background(), conn, conn.Schema(), "T")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	want := []source.Row{
		{"id": int64(3), "name": "carol", "score": 1.5},
		{"id": int64(1), "name": "alice", "score": nil},
		{"id": int64(2), "name": "bob", "score": 7.25},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows differ:\n got  %v\n want %v", rows, want)
	}
}

func TestReadAllRows_EmptyTable(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "T", Columns: []string{"id"}})
	conn := openFixture(t, f, 1)
	rows, err := source.ReadAllRows(context.Background(), conn, conn.Schema(), "T")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty slice, got %#v", rows)
	}
}

func TestReadAllRows_TypedDecode(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{
		Name:    "typed",
		Columns: []string{"n", "price", "doc", "raw"},
		Types:   []string{"BIGINT", "DECIMAL", "JSON", "VARBINARY"},
		Rows: [][]driver.Value{
			{[]byte("42"), []byte("10.10"), []byte(`{"a":[1,2]}`), []byte{0x00, 0x01}},
		},
	})
	conn := openFixture(t, f, 1)
	rows, err := source.ReadAllRows(context.Background(), conn, conn.Schema(), "typed")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	r := rows[0]
	if r["n"] != int64(42) {
		t.Fatalf("expected int64 42, got %#v", r["n"])
	}
	if r["price"].(interface{ String() string }).String() != "10.10" {
		t.Fatalf("expected exact decimal, got %#v", r["price"])
	}
	doc, ok := r["doc"].(map[string]any)
	if !ok || len(doc["a"].([]any)) != 2 {
		t.Fatalf("expected decoded JSON document, got %#v", r["doc"])
	}
	if !reflect.DeepEqual(r["raw"], []byte{0x00, 0x01}) {
		t.Fatalf("expected raw bytes, got %#v", r["raw"])
	}
}

func TestReadAllRows_Failure(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "T", Columns: []string{"id"}})
	f.FailData("T", errors.New("table is locked"))
	conn := openFixture(t, f, 1)

	_, err := source.ReadAllRows(context.Background(), conn, conn.Schema(), "T")
	var qe *source.QueryError
	if !errors.As(err, &qe) || qe.Phase != source.PhaseReadData || qe.Table != "T" {
		t.Fatalf("expected read-data QueryError for T, got %v", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	f := sourcetest.New(t, sourcetest.Table{Name: "slow", Columns: []string{"id"}})
	cfg := f.Config(1)
	cfg.QueryTimeout = 20 * time.Millisecond
	conn, err := source.Open(context.Background(), cfg, f.Dialect())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	f.SetDelay(time.Second)
	_, err = source.ReadAllRows(context.Background(), conn, conn.Schema(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
