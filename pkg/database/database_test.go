package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/query"
	"github.com/centogram/strapi/internal/db/transaction"
)

func articleModels() map[string]ModelDefinition {
	return map[string]ModelDefinition{
		"api::article.article": {
			TableName: "articles",
			Attributes: map[string]Attribute{
				"id":    {Type: TypeUUID, Generated: true},
				"title": {Type: TypeString, Required: true},
				"slug":  {Type: TypeString, Unique: true},
				"views": {Type: TypeInteger, Default: 0},
			},
		},
	}
}

func newTestDB(t *testing.T, cfg Config) *Database {
	t.Helper()

	if cfg.Connection.Client == "" {
		cfg.Connection = ConnectionConfig{Client: "sqlite", DSN: ":memory:"}
	}
	if cfg.Models == nil {
		cfg.Models = articleModels()
	}

	db, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Destroy() })
	return db
}

func TestNew_SchemaAutoCreated(t *testing.T) {
	db := newTestDB(t, Config{})
	ctx := context.Background()

	// no DDL was issued by the test; startup reconciliation built the table
	repo, err := db.Query("api::article.article")
	require.NoError(t, err)

	created, err := repo.Create(ctx, map[string]interface{}{
		"title": "Hello",
		"slug":  "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created["id"])
	assert.EqualValues(t, 0, created["views"])
}

func TestNew_ForceMigrationDisabled(t *testing.T) {
	off := false
	db := newTestDB(t, Config{Settings: Settings{ForceMigration: &off}})

	changes, err := db.Schema().Diff(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, changes, "schema should be left untouched")
}

func TestNew_RunsMigrations(t *testing.T) {
	db := newTestDB(t, Config{
		Migrations: []Migration{
			{
				Version: 1, Name: "seed_welcome_article",
				Up: func(ctx context.Context, q transaction.Querier) error {
					_, err := q.ExecContext(ctx,
						`INSERT INTO articles (id, title, slug, views) VALUES ('w', 'Welcome', 'welcome', 0)`)
					return err
				},
			},
		},
	})
	ctx := context.Background()

	statuses, err := db.Migrations().Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)

	repo, err := db.Query("api::article.article")
	require.NoError(t, err)
	rec, err := repo.FindOne(ctx, Params{Filters: []Condition{query.Eq("slug", "welcome")}})
	require.NoError(t, err)
	assert.Equal(t, "Welcome", rec["title"])
}

func TestNew_InvalidModel(t *testing.T) {
	_, err := New(context.Background(), Config{
		Connection: ConnectionConfig{Client: "sqlite", DSN: ":memory:"},
		Models: map[string]ModelDefinition{
			"broken": {Attributes: map[string]Attribute{
				"id":  {Type: TypeUUID, Generated: true},
				"rel": {Type: TypeRelation, Target: "missing"},
			}},
		},
	})
	require.Error(t, err)
}

func TestNew_UnknownClient(t *testing.T) {
	_, err := New(context.Background(), Config{
		Connection: ConnectionConfig{Client: "oracle"},
	})
	assert.ErrorContains(t, err, "unknown database client")
}

func TestDatabase_QueryUnknownModel(t *testing.T) {
	db := newTestDB(t, Config{})

	_, err := db.Query("api::missing.missing")
	var unknownErr *UnknownModelError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "api::missing.missing", unknownErr.UID)

	_, err = db.QueryBuilder("api::missing.missing")
	require.Error(t, err)
}

func TestDatabase_QueryBuilder(t *testing.T) {
	db := newTestDB(t, Config{})
	ctx := context.Background()

	repo, err := db.Query("api::article.article")
	require.NoError(t, err)
	for _, title := range []string{"First", "Second"} {
		_, err := repo.Create(ctx, map[string]interface{}{"title": title, "slug": title})
		require.NoError(t, err)
	}

	qb, err := db.QueryBuilder("api::article.article")
	require.NoError(t, err)
	rows, err := qb.Where(query.Contains("title", "first")).GetMany(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "First", rows[0]["title"])
}

func TestDatabase_Subscribe(t *testing.T) {
	db := newTestDB(t, Config{})
	ctx := context.Background()

	var seen []string
	unsubscribe := db.Subscribe("api::article.article", lifecycle.AfterCreate, func(ctx context.Context, ev *Event) error {
		record := ev.Result.(map[string]interface{})
		seen = append(seen, record["title"].(string))
		return nil
	})

	repo, err := db.Query("api::article.article")
	require.NoError(t, err)
	_, err = repo.Create(ctx, map[string]interface{}{"title": "Hooked", "slug": "hooked"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hooked"}, seen)

	unsubscribe()
	_, err = repo.Create(ctx, map[string]interface{}{"title": "Silent", "slug": "silent"})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestDatabase_ErrNotFoundReExport(t *testing.T) {
	db := newTestDB(t, Config{})

	repo, err := db.Query("api::article.article")
	require.NoError(t, err)
	_, err = repo.FindOne(context.Background(), Params{Filters: []Condition{query.Eq("slug", "nope")}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatabase_Destroy(t *testing.T) {
	db := newTestDB(t, Config{})

	require.NoError(t, db.Destroy())
	assert.ErrorIs(t, db.Destroy(), ErrDestroyed)

	_, err := db.Query("api::article.article")
	assert.ErrorIs(t, err, ErrDestroyed)

	err = db.Transaction(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDestroyed)
}
