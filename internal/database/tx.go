package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// Tx is a write transaction that collects callbacks to run once it commits.
type Tx struct {
	*sql.Tx
	hooks []func(ctx context.Context)
}

// OnCommit registers fn to run after the transaction commits. Callbacks run
// in registration order on the committing goroutine and never run if the
// transaction rolls back.
func (tx *Tx) OnCommit(fn func(ctx context.Context)) {
	tx.hooks = append(tx.hooks, fn)
}

// RunInTx runs fn inside a transaction. If fn returns an error or panics the
// transaction is rolled back and no callback runs. Otherwise the transaction
// is committed and the registered callbacks are invoked with a context that
// outlives ctx's cancellation.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	tx.runHooks(context.WithoutCancel(ctx))
	return nil
}

func (tx *Tx) runHooks(ctx context.Context) {
	for i, hook := range tx.hooks {
		runHook(ctx, i, hook)
	}
	tx.hooks = nil
}

// runHook isolates one callback so that a panic does not skip the rest.
func runHook(ctx context.Context, index int, hook func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "post-commit callback panicked",
				slog.Int("index", index),
				slog.Any("panic", r),
			)
			sentry.CurrentHub().Recover(r)
		}
	}()
	hook(ctx)
}
