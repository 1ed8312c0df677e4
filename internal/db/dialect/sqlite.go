package dialect

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/centogram/strapi/internal/db/metadata"
)

func init() {
	Register("sqlite", func() Dialect { return &SQLite{} })
}

// SQLite is the SQLite dialect
type SQLite struct{}

// Name returns "sqlite"
func (s *SQLite) Name() string { return "sqlite" }

// DriverName returns the go-sqlite3 driver name
func (s *SQLite) DriverName() string { return "sqlite3" }

// Configure validates the connection settings. SQLite handles a single
// writer, so the pool is capped at one connection, and foreign key
// enforcement is switched on through the DSN.
func (s *SQLite) Configure(cfg *Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("sqlite: connection DSN is required")
	}
	if cfg.Schema != "" {
		return fmt.Errorf("sqlite: schemas are not supported")
	}

	cfg.Pool.MaxOpen = 1
	cfg.Pool.MaxIdle = 1

	if !strings.Contains(cfg.DSN, "_foreign_keys") {
		sep := "?"
		if strings.Contains(cfg.DSN, "?") {
			sep = "&"
		}
		cfg.DSN += sep + "_foreign_keys=on"
	}
	return nil
}

// QuoteIdentifier quotes an identifier with double quotes
func (s *SQLite) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Placeholder returns the ? placeholder
func (s *SQLite) Placeholder(n int) string { return "?" }

// DefaultSchema returns "" because SQLite has no schema concept
func (s *SQLite) DefaultSchema() string { return "" }

// SupportsReturning reports RETURNING support (requires SQLite >= 3.35,
// which go-sqlite3 ships)
func (s *SQLite) SupportsReturning() bool { return true }

// ContainsOperator returns LIKE; SQLite LIKE is case-insensitive for ASCII
func (s *SQLite) ContainsOperator() string { return "LIKE" }

// ColumnType maps a metadata column to a SQLite column type
func (s *SQLite) ColumnType(col *metadata.Column) (string, error) {
	switch col.Type {
	case metadata.TypeString, metadata.TypeText, metadata.TypeUUID, metadata.TypeJSON:
		return "text", nil
	case metadata.TypeInteger, metadata.TypeBigInteger:
		return "integer", nil
	case metadata.TypeFloat:
		return "real", nil
	case metadata.TypeDecimal:
		return "numeric", nil
	case metadata.TypeBoolean:
		return "boolean", nil
	case metadata.TypeDatetime:
		return "datetime", nil
	case metadata.TypeDate:
		return "date", nil
	default:
		return "", fmt.Errorf("sqlite: no column type for attribute type %s", col.Type)
	}
}
