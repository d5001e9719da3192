package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vrnvu/dbfacade/internal/dsn"
	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
)

// Conn is a Client holding exactly 1 native pgx connection, no database/sql pool
// pgx.Conn is not safe for concurrent use, so every call is serialized
type Conn struct {
	conn             *pgx.Conn
	log              logger.Logger
	recorder         metrics.Recorder
	statementTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

var _ Client = (*Conn)(nil)

// Connect opens a native pgx connection. Pool options are ignored
func Connect(ctx context.Context, connectionString string, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := dsn.Validate(dsn.Postgres, connectionString); err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	log := o.log.AddContext(logger.Ctx{
		"conn":   uuid.NewString(),
		"driver": "pgx-native",
		"dsn":    dsn.Redact(dsn.Postgres, connectionString),
	})

	connectCtx := ctx
	if o.connectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, o.connectTimeout)
		defer cancel()
	}

	conn, err := pgx.Connect(connectCtx, connectionString)
	if err != nil {
		log.Error("Unable to connect to database", logger.Ctx{"err": err})
		return nil, errors.Join(ErrConnection, err)
	}

	recorder := o.recorder
	if recorder == nil {
		recorder = metrics.NewReservoir(nil)
	}

	return &Conn{
		conn:             conn,
		log:              log,
		recorder:         metrics.NewSynchronized(recorder),
		statementTimeout: o.statementTimeout,
	}, nil
}

// Ping tests the connection to the database
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.conn.Ping(ctx); err != nil {
		c.log.Error("Failed to ping db", logger.Ctx{"err": err})
		return errors.Join(ErrConnection, err)
	}

	return nil
}

func (c *Conn) Exec(ctx context.Context, statement string, args ...any) (ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ExecResult{}, ErrClosed
	}
	if strings.TrimSpace(statement) == "" {
		c.recorder.AddSkipped()
		return ExecResult{}, ErrEmptyStatement
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	tag, err := c.conn.Exec(ctx, statement, args...)
	if err != nil {
		c.recorder.AddFailed()
		c.log.Error("Error executing statement", logger.Ctx{"statement": abbreviate(statement), "err": err})
		return ExecResult{}, errors.Join(ErrQuery, err)
	}

	duration := time.Since(start)
	c.recorder.AddResponse(duration)
	return ExecResult{RowsAffected: tag.RowsAffected(), Duration: duration}, nil
}

func (c *Conn) Query(ctx context.Context, statement string, args ...any) (*QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(statement) == "" {
		c.recorder.AddSkipped()
		return nil, ErrEmptyStatement
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := c.conn.Query(ctx, statement, args...)
	if err != nil {
		c.recorder.AddFailed()
		c.log.Error("Failed to query db", logger.Ctx{"statement": abbreviate(statement), "err": err})
		return nil, errors.Join(ErrQuery, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &QueryResult{Columns: columns, Rows: make([]Row, 0)}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			c.recorder.AddFailed()
			return nil, errors.Join(ErrQuery, err)
		}

		row := make(Row, len(values))
		for i, v := range values {
			row[columns[i]] = convert(v)
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		c.recorder.AddFailed()
		c.log.Error("Failed to read rows", logger.Ctx{"statement": abbreviate(statement), "err": err})
		return nil, errors.Join(ErrQuery, err)
	}

	result.Duration = time.Since(start)
	c.recorder.AddResponse(result.Duration)
	return result, nil
}

// Close closes the connection. Closing twice returns ErrClosed
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true

	if err := c.conn.Close(context.Background()); err != nil {
		c.log.Error("Failed to close db", logger.Ctx{"err": err})
		return errors.Join(ErrConnection, err)
	}

	return nil
}

// Stats aggregates the latency of every statement run so far
func (c *Conn) Stats() metrics.Result {
	return c.recorder.Aggregate()
}

func (c *Conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.statementTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.statementTimeout)
}
