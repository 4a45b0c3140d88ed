package source

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadAllRows reads every row of schema.table. There is no limit: memory use
// grows with the table.
func ReadAllRows(ctx context.Context, c *Connection, schema, table string) ([]Row, error) {
	if table == "" {
		return nil, &QueryError{Phase: PhaseReadData, Err: ErrEmptyTableName}
	}
	rows, err := c.readRows(ctx, SelectAll(c.dialect, schema, table))
	if err != nil {
		return nil, &QueryError{Phase: PhaseReadData, Table: table, Err: err}
	}
	return rows, nil
}

func (c *Connection) readRows(ctx context.Context, query string) ([]Row, error) {
	var out []Row
	err := c.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		out, err = scanRows(ctx, conn, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanRows(ctx context.Context, conn *sql.Conn, query string) ([]Row, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	typeNames := make([]string, len(colTypes))
	for i, ct := range colTypes {
		typeNames[i] = ct.DatabaseTypeName()
	}

	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	out := []Row{}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(names))
		for i, name := range names {
			v, err := decodeValue(typeNames[i], raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			row[name] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
