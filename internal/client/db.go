package client

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vrnvu/dbfacade/internal/dsn"
	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
)

// DB is a Client backed by a database/sql driver
// It is safe for concurrent use: database/sql owns the connection pool,
// DB only guards its closed state so Close waits for in-flight statements
type DB struct {
	id               string
	driver           string
	db               *sqlx.DB
	log              logger.Logger
	recorder         metrics.Recorder
	statementTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

var _ Client = (*DB)(nil)

// Open validates the connection string, opens the driver and pings it
// Every failure is an ErrConnection
func Open(ctx context.Context, driverName, connectionString string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	driver, err := dsn.Normalize(driverName)
	if err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	if err := dsn.Validate(driver, connectionString); err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	id := uuid.NewString()
	log := o.log.AddContext(logger.Ctx{
		"conn":   id,
		"driver": driver,
		"dsn":    dsn.Redact(driver, connectionString),
	})

	sqlxDB, err := sqlx.Open(driver, connectionString)
	if err != nil {
		log.Error("Failed to open db", logger.Ctx{"err": err})
		return nil, errors.Join(ErrConnection, err)
	}

	if dsn.IsMemory(driver, connectionString) {
		// every sqlite connection gets its own in-memory database,
		// pin a single connection for the lifetime of the pool
		sqlxDB.SetMaxOpenConns(1)
		sqlxDB.SetMaxIdleConns(1)
		sqlxDB.SetConnMaxLifetime(0)
	} else {
		sqlxDB.SetMaxOpenConns(o.maxOpenConns)
		sqlxDB.SetMaxIdleConns(o.maxIdleConns)
		sqlxDB.SetConnMaxLifetime(o.connMaxLifetime)
	}

	recorder := o.recorder
	if recorder == nil {
		recorder = metrics.NewReservoir(nil)
	}

	d := &DB{
		id:               id,
		driver:           driver,
		db:               sqlxDB,
		log:              log,
		recorder:         metrics.NewSynchronized(recorder),
		statementTimeout: o.statementTimeout,
	}

	if err := d.connect(ctx, o.connectTimeout, o.connectRetries); err != nil {
		log.Error("Failed to ping db", logger.Ctx{"err": err})
		_ = sqlxDB.Close()
		return nil, errors.Join(ErrConnection, err)
	}

	log.Debug("Opened db")
	return d, nil
}

func (d *DB) connect(ctx context.Context, timeout time.Duration, retries int) error {
	ping := func() error {
		pingCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := d.db.PingContext(pingCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			d.log.Warn("Ping failed", logger.Ctx{"err": err})
		}

		return err
	}

	if retries <= 0 {
		return ping()
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return backoff.Retry(ping, b)
}

// ID is the random identifier attached to every log line of this client
func (d *DB) ID() string {
	return d.id
}

// Driver is the canonical driver name
func (d *DB) Driver() string {
	return d.driver
}

// Ping checks the backend is reachable
func (d *DB) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	if err := d.db.PingContext(ctx); err != nil {
		d.log.Error("Failed to ping db", logger.Ctx{"err": err})
		return errors.Join(ErrConnection, err)
	}

	return nil
}

// Alive is Ping as a boolean, false after Close
func (d *DB) Alive(ctx context.Context) bool {
	return d.Ping(ctx) == nil
}

// Exec prepares and runs a statement that does not return rows
func (d *DB) Exec(ctx context.Context, statement string, args ...any) (ExecResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ExecResult{}, ErrClosed
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	return execOn(ctx, d.db, d.log, d.recorder, statement, args)
}

// Query prepares and runs a statement, reading every row before returning
func (d *DB) Query(ctx context.Context, statement string, args ...any) (*QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	return queryOn(ctx, d.db, d.log, d.recorder, statement, args)
}

// Close releases the pool. Closing twice returns ErrClosed
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.closed = true

	if err := d.db.Close(); err != nil {
		d.log.Error("Failed to close db", logger.Ctx{"err": err})
		return errors.Join(ErrConnection, err)
	}

	d.log.Debug("Closed db")
	return nil
}

// Stats aggregates the latency of every statement run so far
func (d *DB) Stats() metrics.Result {
	return d.recorder.Aggregate()
}

// PoolStats exposes the database/sql pool counters
func (d *DB) PoolStats() sql.DBStats {
	return d.db.Stats()
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.statementTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, d.statementTimeout)
}

// preparer is implemented by both *sqlx.DB and *sqlx.Tx
type preparer interface {
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

func execOn(ctx context.Context, p preparer, log logger.Logger, recorder metrics.Recorder, statement string, args []any) (ExecResult, error) {
	if strings.TrimSpace(statement) == "" {
		recorder.AddSkipped()
		return ExecResult{}, ErrEmptyStatement
	}

	log = log.AddContext(logger.Ctx{"statement": abbreviate(statement)})
	start := time.Now()

	stmt, err := p.PreparexContext(ctx, statement)
	if err != nil {
		recorder.AddFailed()
		log.Error("Failed to prepare statement", logger.Ctx{"err": err})
		return ExecResult{}, errors.Join(ErrQuery, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		recorder.AddFailed()
		log.Error("Error executing statement", logger.Ctx{"err": err})
		return ExecResult{}, errors.Join(ErrQuery, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		recorder.AddFailed()
		log.Error("Error getting rows affected", logger.Ctx{"err": err})
		return ExecResult{}, errors.Join(ErrQuery, err)
	}

	// not every driver reports it, pgx never does
	lastInsertID, err := res.LastInsertId()
	if err != nil {
		lastInsertID = 0
	}

	duration := time.Since(start)
	recorder.AddResponse(duration)
	log.Debug("Executed statement", logger.Ctx{"rows": rows, "duration": duration})

	return ExecResult{
		RowsAffected: rows,
		LastInsertID: lastInsertID,
		Duration:     duration,
	}, nil
}

func queryOn(ctx context.Context, p preparer, log logger.Logger, recorder metrics.Recorder, statement string, args []any) (*QueryResult, error) {
	if strings.TrimSpace(statement) == "" {
		recorder.AddSkipped()
		return nil, ErrEmptyStatement
	}

	log = log.AddContext(logger.Ctx{"statement": abbreviate(statement)})
	start := time.Now()

	stmt, err := p.PreparexContext(ctx, statement)
	if err != nil {
		recorder.AddFailed()
		log.Error("Failed to prepare statement", logger.Ctx{"err": err})
		return nil, errors.Join(ErrQuery, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryxContext(ctx, args...)
	if err != nil {
		recorder.AddFailed()
		log.Error("Failed to query db", logger.Ctx{"err": err})
		return nil, errors.Join(ErrQuery, err)
	}
	defer rows.Close()

	result, err := readRows(rows)
	if err != nil {
		recorder.AddFailed()
		log.Error("Failed to read rows", logger.Ctx{"err": err})
		return nil, errors.Join(ErrQuery, err)
	}

	result.Duration = time.Since(start)
	recorder.AddResponse(result.Duration)
	log.Debug("Ran query", logger.Ctx{"rows": result.Len(), "duration": result.Duration})

	return result, nil
}

func abbreviate(statement string) string {
	const limit = 120
	statement = strings.Join(strings.Fields(statement), " ")
	if len(statement) <= limit {
		return statement
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(statement[cut]) {
		cut--
	}

	return statement[:cut] + "..."
}
