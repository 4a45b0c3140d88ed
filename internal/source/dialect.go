package source

// Dialect carries everything that differs between database engines: how to
// reach them and how to read their catalog.
type Dialect interface {
	// Name is the config value selecting this dialect, e.g. "mysql".
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	DefaultPort() int
	// DefaultSchema is used when ConnectionConfig.Schema is empty.
	DefaultSchema(cfg ConnectionConfig) string
	DSN(cfg ConnectionConfig) (string, error)

	// ListTablesQuery returns a query producing one column of base table
	// names for schema.
	ListTablesQuery(schema string) (string, []any)
	// ListColumnsQuery returns a query producing one column of column names
	// for table, in ordinal order.
	ListColumnsQuery(schema, table string) (string, []any)
	QuoteIdentifier(name string) string
}

// SelectAll builds the full-table read for schema.table with both identifiers
// quoted by d.
func SelectAll(d Dialect, schema, table string) string {
	if schema == "" {
		return "SELECT * FROM " + d.QuoteIdentifier(table)
	}
	return "SELECT * FROM " + d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}
