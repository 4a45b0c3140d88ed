package mysql

import (
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Dialect struct{}

func New() *Dialect { return &Dialect{} }

func (*Dialect) Name() string       { return "mysql" }
func (*Dialect) DriverName() string { return "mysql" }
func (*Dialect) DefaultPort() int   { return 3306 }

// DefaultSchema is the database itself: MySQL has no separate schema level.
func (*Dialect) DefaultSchema(cfg source.ConnectionConfig) string { return cfg.Database }

func (*Dialect) DSN(cfg source.ConnectionConfig) (string, error) {
	tls, err := tlsConfig(cfg.SSLMode)
	if err != nil {
		return "", err
	}
	c := driver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = cfg.Addr()
	c.DBName = cfg.Database
	c.ParseTime = true
	c.TLSConfig = tls
	c.Timeout = cfg.ConnectTimeout
	return c.FormatDSN(), nil
}

// tlsConfig maps the libpq-style ssl modes used in config files onto the
// driver's tls parameter.
func tlsConfig(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case "", "disable", "false":
		return "", nil
	case "require", "true", "verify-full", "verify-ca":
		return "true", nil
	case "skip-verify":
		return "skip-verify", nil
	case "prefer", "preferred":
		return "preferred", nil
	default:
		return "", fmt.Errorf("unsupported mysql ssl mode: %s", mode)
	}
}

func (*Dialect) ListTablesQuery(schema string) (string, []any) {
	return `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, []any{schema}
}

func (*Dialect) ListColumnsQuery(schema, table string) (string, []any) {
	return `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, []any{schema, table}
}

func (*Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
