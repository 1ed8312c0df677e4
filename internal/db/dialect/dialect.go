// Package dialect normalizes per-backend SQL syntax and capabilities behind
// a single interface. A dialect is resolved and configured once at
// construction, before the connection is opened, because capability flags
// such as pool limits affect how the connection is initialized.
package dialect

import (
	"time"

	"github.com/centogram/strapi/internal/db/metadata"
)

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Config holds the driver-specific connection settings. Configure may adjust
// it during capability negotiation (sqlite caps the pool at one connection,
// postgres validates the schema name).
type Config struct {
	Client string // dialect name: "postgres" or "sqlite"
	DSN    string
	Schema string // non-default schema to qualify table names with
	Pool   PoolConfig
}

// Dialect adapts the data-access core to one SQL backend
type Dialect interface {
	// Name returns the dialect name used in configuration
	Name() string

	// DriverName returns the database/sql driver to open connections with
	DriverName() string

	// Configure negotiates capabilities against the connection settings.
	// It runs before the connection is established and may mutate cfg.
	Configure(cfg *Config) error

	// QuoteIdentifier quotes a table or column name
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for the 1-based position n
	Placeholder(n int) string

	// DefaultSchema returns the schema that needs no qualification, or ""
	// when the backend has no schema concept
	DefaultSchema() string

	// SupportsReturning reports whether INSERT ... RETURNING is available
	SupportsReturning() bool

	// ContainsOperator returns the substring-match operator
	ContainsOperator() string

	// ColumnType maps a metadata column to the backend's column type
	ColumnType(col *metadata.Column) (string, error)
}
