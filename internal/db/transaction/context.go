package transaction

import (
	"context"
	"database/sql"
)

// txKey is an unexported context key type. Using a private type prevents
// collisions with context values set by other packages.
type txKey struct{}

// WithTransaction returns a new context carrying tx as the ambient
// transaction for the dynamic extent of everything derived from it.
// Concurrent call chains hold independent contexts, so they never observe
// each other's transaction.
func WithTransaction(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// FromContext retrieves the ambient transaction from the context.
// Returns the transaction and true if found, nil and false otherwise.
func FromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(*Transaction)
	return tx, ok
}

// ResolveQuerier returns the ambient transaction's querier when the context
// carries one, and db otherwise. Repository operations call this so they
// transparently participate in an open transaction.
func ResolveQuerier(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := FromContext(ctx); ok && !tx.Finalized() {
		return tx.tx
	}
	return db
}
