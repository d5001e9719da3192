package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
)

// Tx runs statements inside a transaction started by DB.Tx
type Tx struct {
	tx       *sqlx.Tx
	log      logger.Logger
	recorder metrics.Recorder
}

// Exec runs a statement inside the transaction
func (t *Tx) Exec(ctx context.Context, statement string, args ...any) (ExecResult, error) {
	return execOn(ctx, t.tx, t.log, t.recorder, statement, args)
}

// Query runs a query inside the transaction
func (t *Tx) Query(ctx context.Context, statement string, args ...any) (*QueryResult, error) {
	return queryOn(ctx, t.tx, t.log, t.recorder, statement, args)
}

// Tx executes f within a transaction. f's error rolls back and is returned,
// otherwise the transaction is committed
func (d *DB) Tx(ctx context.Context, f func(context.Context, *Tx) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		d.log.Error("Failed to begin transaction", logger.Ctx{"err": err})
		return errors.Join(ErrConnection, fmt.Errorf("failed to begin transaction: %w", err))
	}

	err = f(ctx, &Tx{tx: tx, log: d.log.AddContext(logger.Ctx{"tx": true}), recorder: d.recorder})
	if err != nil {
		return d.rollback(tx, err)
	}

	err = tx.Commit()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil // f already committed or rolled back
	}
	if err != nil {
		d.log.Error("Failed to commit transaction", logger.Ctx{"err": err})
		return errors.Join(ErrQuery, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// rollback after reason occurred. reason is always returned, a failed
// rollback is only logged
func (d *DB) rollback(tx *sqlx.Tx, reason error) error {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.log.Warn("Failed to rollback transaction", logger.Ctx{"reason": reason, "err": err})
	}

	return reason
}
