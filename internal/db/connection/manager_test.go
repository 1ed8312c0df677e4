package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centogram/strapi/internal/db/dialect"
)

func sqliteManager(t *testing.T) *Manager {
	t.Helper()

	d, err := dialect.Resolve("sqlite")
	require.NoError(t, err)

	cfg := dialect.Config{Client: "sqlite", DSN: ":memory:"}
	require.NoError(t, d.Configure(&cfg))

	m, err := New(context.Background(), d, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNew_SQLite(t *testing.T) {
	m := sqliteManager(t)
	require.NotNil(t, m.Conn())
	assert.Equal(t, "sqlite", m.Dialect().Name())
}

func TestNew_PingFailure(t *testing.T) {
	d, err := dialect.Resolve("postgres")
	require.NoError(t, err)

	cfg := dialect.Config{Client: "postgres", DSN: "postgres://nobody@127.0.0.1:1/void?connect_timeout=1"}
	require.NoError(t, d.Configure(&cfg))

	_, err = New(context.Background(), d, cfg, nil)
	var connErr *Error
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "ping", connErr.Op)
}

func TestManager_Table(t *testing.T) {
	m := sqliteManager(t)
	assert.Equal(t, `"articles"`, m.Table("articles"))
}

func TestManager_Table_SchemaQualified(t *testing.T) {
	d, err := dialect.Resolve("postgres")
	require.NoError(t, err)

	// no live postgres needed to exercise qualification rules
	cfg := dialect.Config{Client: "postgres", DSN: "postgres://localhost/app", Schema: "content"}
	require.NoError(t, d.Configure(&cfg))
	m := &Manager{dialect: d, schema: cfg.Schema}
	assert.Equal(t, `"content"."articles"`, m.Table("articles"))

	// the default schema adds no qualification
	cfgDefault := dialect.Config{Client: "postgres", DSN: "postgres://localhost/app", Schema: "public"}
	require.NoError(t, d.Configure(&cfgDefault))
	mDefault := &Manager{dialect: d, schema: cfgDefault.Schema}
	assert.Equal(t, `"articles"`, mDefault.Table("articles"))
}

func TestManager_SchemaQuerier(t *testing.T) {
	m := sqliteManager(t)

	q := m.SchemaQuerier(nil)
	_, err := q.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
}

func TestManager_Close(t *testing.T) {
	d, err := dialect.Resolve("sqlite")
	require.NoError(t, err)
	cfg := dialect.Config{Client: "sqlite", DSN: ":memory:"}
	require.NoError(t, d.Configure(&cfg))

	m, err := New(context.Background(), d, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.Error(t, m.Conn().Ping())
}
