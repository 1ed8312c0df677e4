// Package connection owns the pooled database handle for the process and
// exposes the schema-qualified query entry points the rest of the core
// builds on. One logical connection manager exists per Database.
package connection

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/dialect"
	"github.com/centogram/strapi/internal/db/transaction"
)

// Error reports a pool or driver failure
type Error struct {
	Op  string // "open", "ping", "close"
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Manager owns the single pooled connection for the process. The dialect is
// configured before New opens the connection and is immutable afterwards.
type Manager struct {
	db      *sql.DB
	dialect dialect.Dialect
	schema  string
	log     *zap.Logger
}

// New opens and validates the pooled connection against an already
// configured dialect
func New(ctx context.Context, d dialect.Dialect, cfg dialect.Config, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	if cfg.Pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Op: "ping", Err: err}
	}

	log.Debug("database connection established",
		zap.String("dialect", d.Name()),
		zap.Int("pool_max_open", cfg.Pool.MaxOpen))

	return &Manager{
		db:      db,
		dialect: d,
		schema:  cfg.Schema,
		log:     log,
	}, nil
}

// NewWithConn wraps an already opened pool. Useful when the caller owns the
// connection lifecycle, such as tests running against sqlmock.
func NewWithConn(db *sql.DB, d dialect.Dialect, schema string) *Manager {
	return &Manager{db: db, dialect: d, schema: schema, log: zap.NewNop()}
}

// Conn returns the underlying pooled connection
func (m *Manager) Conn() *sql.DB {
	return m.db
}

// Dialect returns the dialect the connection was initialized against
func (m *Manager) Dialect() dialect.Dialect {
	return m.dialect
}

// Schema returns the configured schema name, empty when unset
func (m *Manager) Schema() string {
	return m.schema
}

// Table returns the quoted table reference for queries, schema-qualified
// only when a non-default schema is configured
func (m *Manager) Table(name string) string {
	quoted := m.dialect.QuoteIdentifier(name)
	if m.schema != "" && m.schema != m.dialect.DefaultSchema() {
		return m.dialect.QuoteIdentifier(m.schema) + "." + quoted
	}
	return quoted
}

// SchemaQuerier returns the entry point for DDL statements, bound to tx when
// one is supplied and to the pool otherwise
func (m *Manager) SchemaQuerier(tx *transaction.Transaction) transaction.Querier {
	if tx != nil {
		return tx.Tx()
	}
	return m.db
}

// Close releases the connection pool
func (m *Manager) Close() error {
	if err := m.db.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}
