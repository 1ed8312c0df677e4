// Package transaction provides the transaction handle and manager for the
// data-access core, plus the ambient-context propagation that lets nested
// repository calls join an open transaction without threading a handle
// through every signature.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrAlreadyCommitted is returned when finalizing a handle that was committed
	ErrAlreadyCommitted = errors.New("transaction already committed")
	// ErrAlreadyRolledBack is returned when committing a handle that was rolled back
	ErrAlreadyRolledBack = errors.New("transaction already rolled back")
	// ErrTimeout is returned when a transaction exceeds its deadline
	ErrTimeout = errors.New("transaction timeout")
)

// TransactionError reports a commit or rollback that could not be performed,
// either because the handle was already finalized or because the driver failed.
type TransactionError struct {
	Op  string // "begin", "commit" or "rollback"
	Err error
}

// Error implements the error interface
func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Querier is the query surface shared by *sql.DB and *sql.Tx. Repository
// operations are written against it so they run identically inside and
// outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Transaction represents one open database transaction. It is created by the
// outermost transactional caller and referenced, never finalized, by nested
// callers. Exactly one of Commit or Rollback must succeed, exactly once.
type Transaction struct {
	tx         *sql.Tx
	committed  atomic.Bool
	rolledBack atomic.Bool
	cancel     context.CancelFunc // set for deadline-bound handles
}

// Manager opens transactions against the pooled connection.
type Manager struct {
	db *sql.DB
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Begin starts a new transaction
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &TransactionError{Op: "begin", Err: err}
	}
	return &Transaction{tx: tx}, nil
}

// BeginWithTimeout starts a transaction that must be finalized within the
// given duration. The deadline is released when the handle commits or rolls
// back, which bounds the damage of a handle abandoned without finalizing.
func (m *Manager) BeginWithTimeout(ctx context.Context, timeout time.Duration) (*Transaction, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)

	tx, err := m.Begin(timeoutCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	tx.cancel = cancel
	return tx, nil
}

// WithTransaction executes fn inside a new transaction whose handle is bound
// into the context passed to fn. It commits when fn returns nil, rolls back
// when fn returns an error or panics, and always re-signals the original
// failure. If rollback itself also fails both errors are reported.
func (m *Manager) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithTransaction(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w; rollback failed: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Tx returns the underlying sql.Tx
func (t *Transaction) Tx() *sql.Tx {
	return t.tx
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if t.cancel != nil {
		defer t.cancel()
	}

	if t.committed.Load() {
		return &TransactionError{Op: "commit", Err: ErrAlreadyCommitted}
	}
	if t.rolledBack.Load() {
		return &TransactionError{Op: "commit", Err: ErrAlreadyRolledBack}
	}

	if err := t.tx.Commit(); err != nil {
		return &TransactionError{Op: "commit", Err: err}
	}

	t.committed.Store(true)
	return nil
}

// Rollback rolls back the transaction. Rolling back an already rolled-back
// handle is a no-op so deferred rollbacks stay safe.
func (t *Transaction) Rollback() error {
	if t.cancel != nil {
		defer t.cancel()
	}

	if t.committed.Load() {
		return &TransactionError{Op: "rollback", Err: ErrAlreadyCommitted}
	}
	if t.rolledBack.Load() {
		return nil
	}

	if err := t.tx.Rollback(); err != nil {
		return &TransactionError{Op: "rollback", Err: err}
	}

	t.rolledBack.Store(true)
	return nil
}

// IsCommitted returns true if the transaction has been committed
func (t *Transaction) IsCommitted() bool {
	return t.committed.Load()
}

// IsRolledBack returns true if the transaction has been rolled back
func (t *Transaction) IsRolledBack() bool {
	return t.rolledBack.Load()
}

// Finalized returns true once the handle has been committed or rolled back
func (t *Transaction) Finalized() bool {
	return t.committed.Load() || t.rolledBack.Load()
}
