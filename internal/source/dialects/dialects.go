package dialects

import (
	"fmt"
	"strings"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/mysql"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/postgres"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/sqlite"
)

// Lookup returns the dialect registered under name.
func Lookup(name string) (source.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return mysql.New(), nil
	case "postgres", "postgresql", "pg":
		return postgres.New(), nil
	case "sqlite", "sqlite3":
		return sqlite.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: %s)", name, strings.Join(Supported(), ", "))
	}
}

func Supported() []string {
	return []string{"mysql", "postgres", "sqlite"}
}
