package client

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// readRows drains rows into a QueryResult
// Duplicate column names collapse to the last value, as with any map
func readRows(rows *sqlx.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]Row, 0),
	}

	for rows.Next() {
		values := make(map[string]any, len(columns))
		if err := rows.MapScan(values); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}

		row := make(Row, len(values))
		for name, value := range values {
			row[name] = convert(value)
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

// convert turns driver byte slices into strings, mysql returns most columns as []byte
func convert(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}
