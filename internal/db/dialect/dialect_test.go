package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centogram/strapi/internal/db/metadata"
)

func TestResolve(t *testing.T) {
	pg, err := Resolve("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Name())
	assert.Equal(t, "pgx", pg.DriverName())

	lite, err := Resolve("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", lite.DriverName())

	_, err = Resolve("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database client")
}

func TestPostgres_Configure(t *testing.T) {
	pg := &Postgres{}

	err := pg.Configure(&Config{})
	require.Error(t, err)

	cfg := &Config{Client: "postgres", DSN: "postgres://localhost/app", Schema: "content"}
	require.NoError(t, pg.Configure(cfg))
	assert.Equal(t, 10, cfg.Pool.MaxOpen)
	assert.Equal(t, 2, cfg.Pool.MaxIdle)
}

func TestPostgres_SQLForms(t *testing.T) {
	pg := &Postgres{}
	assert.Equal(t, `"articles"`, pg.QuoteIdentifier("articles"))
	assert.Equal(t, "$3", pg.Placeholder(3))
	assert.Equal(t, "public", pg.DefaultSchema())
	assert.Equal(t, "ILIKE", pg.ContainsOperator())
	assert.True(t, pg.SupportsReturning())
}

func TestSQLite_Configure(t *testing.T) {
	lite := &SQLite{}

	cfg := &Config{Client: "sqlite", DSN: "file:data.db", Pool: PoolConfig{MaxOpen: 25}}
	require.NoError(t, lite.Configure(cfg))

	// capability negotiation caps the pool before the connection opens
	assert.Equal(t, 1, cfg.Pool.MaxOpen)
	assert.Contains(t, cfg.DSN, "_foreign_keys=on")

	err := lite.Configure(&Config{DSN: "file:data.db", Schema: "content"})
	require.Error(t, err)
}

func TestColumnTypes(t *testing.T) {
	pg := &Postgres{}
	lite := &SQLite{}

	tests := []struct {
		attrType metadata.AttributeType
		pgType   string
		liteType string
	}{
		{metadata.TypeString, "varchar(255)", "text"},
		{metadata.TypeText, "text", "text"},
		{metadata.TypeInteger, "integer", "integer"},
		{metadata.TypeBigInteger, "bigint", "integer"},
		{metadata.TypeBoolean, "boolean", "boolean"},
		{metadata.TypeDatetime, "timestamptz", "datetime"},
		{metadata.TypeJSON, "jsonb", "text"},
		{metadata.TypeUUID, "uuid", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.attrType.String(), func(t *testing.T) {
			col := &metadata.Column{Name: "c", Column: "c", Type: tt.attrType}

			got, err := pg.ColumnType(col)
			require.NoError(t, err)
			assert.Equal(t, tt.pgType, got)

			got, err = lite.ColumnType(col)
			require.NoError(t, err)
			assert.Equal(t, tt.liteType, got)
		})
	}
}

func TestColumnType_Relation(t *testing.T) {
	col := &metadata.Column{Name: "author", Type: metadata.TypeRelation}

	_, err := (&Postgres{}).ColumnType(col)
	require.Error(t, err)
	_, err = (&SQLite{}).ColumnType(col)
	require.Error(t, err)
}
