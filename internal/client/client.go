package client

import (
	"context"
	"time"
)

// Row is a single result row, column name to value
// []byte values are returned as string, NULL as nil
type Row map[string]any

// ExecResult is the outcome of a statement that does not return rows
type ExecResult struct {
	// RowsAffected is the number of rows changed by the statement
	RowsAffected int64
	// LastInsertID is 0 when the driver does not report it
	LastInsertID int64
	Duration     time.Duration
}

// QueryResult holds every row of a query, fully read
type QueryResult struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

// Len is the number of rows
func (r *QueryResult) Len() int {
	return len(r.Rows)
}

// Client is the database facade: ping, exec, query and close over a driver
type Client interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, statement string, args ...any) (ExecResult, error)
	Query(ctx context.Context, statement string, args ...any) (*QueryResult, error)
	Close() error
}
