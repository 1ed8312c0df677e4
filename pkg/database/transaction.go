package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/transaction"
)

type txSettings struct {
	onSuccess func(ctx context.Context) error
	onError   func(ctx context.Context, err error)
}

// TxOption tunes a Transaction call
type TxOption func(*txSettings)

// OnSuccess registers a callback run after the transaction commits, or
// after the work function succeeds when joining an outer transaction. Its
// error is returned to the caller.
func OnSuccess(fn func(ctx context.Context) error) TxOption {
	return func(s *txSettings) { s.onSuccess = fn }
}

// OnError registers a callback run when the work function fails. It observes
// the failure; it cannot replace it.
func OnError(fn func(ctx context.Context, err error)) TxOption {
	return func(s *txSettings) { s.onError = fn }
}

// Transaction runs fn inside a transaction bound to the derived context.
// Repository and builder calls made with that context join it automatically.
// When the context already carries a live transaction, fn joins it instead
// of opening a new one, and the outermost caller stays in charge of the
// commit or rollback. A panic in fn rolls back and re-panics.
func (db *Database) Transaction(ctx context.Context, fn func(txCtx context.Context) error, opts ...TxOption) error {
	if db.destroyed.Load() {
		return ErrDestroyed
	}

	var settings txSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var err error
	if tx, ok := transaction.FromContext(ctx); ok && !tx.Finalized() {
		// already inside a transaction: join it, never finalize it
		err = fn(ctx)
	} else {
		err = db.txmgr.WithTransaction(ctx, fn)
	}

	if err == nil && settings.onSuccess != nil {
		err = settings.onSuccess(ctx)
	}

	if err != nil && settings.onError != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					db.log.Warn("transaction error callback panicked", zap.Any("panic", r))
				}
			}()
			settings.onError(ctx, err)
		}()
	}
	return err
}

// TxHandle is a manually managed transaction. Nested handles obtained while
// a transaction is already in flight delegate their outcome to the owner:
// their Commit and Rollback are no-ops.
type TxHandle struct {
	ctx    context.Context
	tx     *transaction.Transaction
	nested bool
}

// Begin opens a transaction the caller finalizes explicitly. When ctx
// already carries a live transaction the returned handle joins it.
func (db *Database) Begin(ctx context.Context) (*TxHandle, error) {
	if db.destroyed.Load() {
		return nil, ErrDestroyed
	}

	if tx, ok := transaction.FromContext(ctx); ok && !tx.Finalized() {
		return &TxHandle{ctx: ctx, tx: tx, nested: true}, nil
	}

	tx, err := db.txmgr.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &TxHandle{ctx: transaction.WithTransaction(ctx, tx), tx: tx}, nil
}

// BeginWithTimeout is Begin with a deadline on the transaction's lifetime,
// guarding against handles that are never finalized
func (db *Database) BeginWithTimeout(ctx context.Context, timeout time.Duration) (*TxHandle, error) {
	if db.destroyed.Load() {
		return nil, ErrDestroyed
	}

	if tx, ok := transaction.FromContext(ctx); ok && !tx.Finalized() {
		return &TxHandle{ctx: ctx, tx: tx, nested: true}, nil
	}

	tx, err := db.txmgr.BeginWithTimeout(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return &TxHandle{ctx: transaction.WithTransaction(ctx, tx), tx: tx}, nil
}

// Context returns the context carrying the transaction. Pass it to
// repository and builder calls that should join.
func (h *TxHandle) Context() context.Context {
	return h.ctx
}

// Get returns the underlying transaction handle
func (h *TxHandle) Get() *transaction.Transaction {
	return h.tx
}

// Querier returns the transaction's statement executor
func (h *TxHandle) Querier() transaction.Querier {
	return h.tx.Tx()
}

// Commit finalizes the transaction. On a nested handle it is a no-op.
func (h *TxHandle) Commit() error {
	if h.nested {
		return nil
	}
	return h.tx.Commit()
}

// Rollback discards the transaction. On a nested handle it is a no-op.
func (h *TxHandle) Rollback() error {
	if h.nested {
		return nil
	}
	return h.tx.Rollback()
}
