// Package sqlite reads SQLite database files. Database is the file path; the
// host, port and credential fields are ignored.
package sqlite

import (
	"errors"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Dialect struct{}

func New() *Dialect { return &Dialect{} }

func (*Dialect) Name() string                                   { return "sqlite" }
func (*Dialect) DriverName() string                             { return "sqlite3" }
func (*Dialect) DefaultPort() int                               { return 0 }
func (*Dialect) DefaultSchema(source.ConnectionConfig) string { return "main" }

// DSN opens the file read-only; extraction never writes.
func (*Dialect) DSN(cfg source.ConnectionConfig) (string, error) {
	if cfg.Database == "" {
		return "", errors.New("sqlite database path is required")
	}
	path := strings.TrimPrefix(cfg.Database, "sqlite://")
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode(), nil
}

func (*Dialect) ListTablesQuery(schema string) (string, []any) {
	return `
		SELECT name
		FROM pragma_table_list
		WHERE schema = ? AND type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`, []any{schema}
}

func (*Dialect) ListColumnsQuery(schema, table string) (string, []any) {
	return `SELECT name FROM pragma_table_info(?, ?) ORDER BY cid`, []any{table, schema}
}

func (*Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
