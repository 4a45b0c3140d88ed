package source

import (
	"context"
	"database/sql"
)

// ListBaseTables returns the base tables of schema in the order the catalog
// query yields them.
func ListBaseTables(ctx context.Context, c *Connection, schema string) ([]string, error) {
	query, args := c.dialect.ListTablesQuery(schema)
	tables, err := c.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Phase: PhaseListTables, Err: err}
	}
	return tables, nil
}

// ListColumns returns the column names of table in ordinal order. A table
// without reported columns yields an empty slice.
func ListColumns(ctx context.Context, c *Connection, schema, table string) ([]string, error) {
	if table == "" {
		return nil, &QueryError{Phase: PhaseListColumns, Err: ErrEmptyTableName}
	}
	query, args := c.dialect.ListColumnsQuery(schema, table)
	cols, err := c.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Phase: PhaseListColumns, Table: table, Err: err}
	}
	return cols, nil
}

func (c *Connection) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	out := []string{}
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
