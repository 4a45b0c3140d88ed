package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Dialect struct{}

func New() *Dialect { return &Dialect{} }

func (*Dialect) Name() string                                   { return "postgres" }
func (*Dialect) DriverName() string                             { return "postgres" }
func (*Dialect) DefaultPort() int                               { return 5432 }
func (*Dialect) DefaultSchema(source.ConnectionConfig) string { return "public" }

func (*Dialect) DSN(cfg source.ConnectionConfig) (string, error) {
	mode := strings.ToLower(cfg.SSLMode)
	switch mode {
	case "":
		mode = "disable"
	case "false":
		mode = "disable"
	case "true":
		mode = "require"
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return "", fmt.Errorf("unsupported postgres ssl mode: %s", cfg.SSLMode)
	}

	q := url.Values{}
	q.Set("sslmode", mode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     cfg.Addr(),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	return u.String(), nil
}

func (*Dialect) ListTablesQuery(schema string) (string, []any) {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, []any{schema}
}

func (*Dialect) ListColumnsQuery(schema, table string) (string, []any) {
	return `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, []any{schema, table}
}

func (*Dialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}
