package dialect

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/centogram/strapi/internal/db/metadata"
)

func init() {
	Register("postgres", func() Dialect { return &Postgres{} })
}

// Postgres is the PostgreSQL dialect
type Postgres struct {
	schema string
}

// Name returns "postgres"
func (p *Postgres) Name() string { return "postgres" }

// DriverName returns the pgx stdlib driver name
func (p *Postgres) DriverName() string { return "pgx" }

// Configure validates the connection settings and records the target schema
func (p *Postgres) Configure(cfg *Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("postgres: connection DSN is required")
	}
	if cfg.Pool.MaxOpen <= 0 {
		cfg.Pool.MaxOpen = 10
	}
	if cfg.Pool.MaxIdle <= 0 {
		cfg.Pool.MaxIdle = 2
	}
	p.schema = cfg.Schema
	return nil
}

// QuoteIdentifier quotes an identifier with double quotes
func (p *Postgres) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Placeholder returns the $N placeholder for position n
func (p *Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// DefaultSchema returns "public"
func (p *Postgres) DefaultSchema() string { return "public" }

// SupportsReturning reports RETURNING support
func (p *Postgres) SupportsReturning() bool { return true }

// ContainsOperator returns ILIKE for case-insensitive substring matching
func (p *Postgres) ContainsOperator() string { return "ILIKE" }

// ColumnType maps a metadata column to a PostgreSQL column type
func (p *Postgres) ColumnType(col *metadata.Column) (string, error) {
	switch col.Type {
	case metadata.TypeString:
		return "varchar(255)", nil
	case metadata.TypeText:
		return "text", nil
	case metadata.TypeInteger:
		return "integer", nil
	case metadata.TypeBigInteger:
		return "bigint", nil
	case metadata.TypeFloat:
		return "double precision", nil
	case metadata.TypeDecimal:
		return "numeric(10,2)", nil
	case metadata.TypeBoolean:
		return "boolean", nil
	case metadata.TypeDatetime:
		return "timestamptz", nil
	case metadata.TypeDate:
		return "date", nil
	case metadata.TypeJSON:
		return "jsonb", nil
	case metadata.TypeUUID:
		return "uuid", nil
	default:
		return "", fmt.Errorf("postgres: no column type for attribute type %s", col.Type)
	}
}
