package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/dialect"
	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/query"
	"github.com/centogram/strapi/internal/db/transaction"
)

type testEnv struct {
	conn *connection.Manager
	bus  *lifecycle.Bus
	mgr  *Manager
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	d, err := dialect.Resolve("sqlite")
	require.NoError(t, err)
	cfg := dialect.Config{Client: "sqlite", DSN: ":memory:"}
	require.NoError(t, d.Configure(&cfg))

	conn, err := connection.New(context.Background(), d, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Conn().Exec(`
		CREATE TABLE articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			slug TEXT UNIQUE,
			views INTEGER DEFAULT 0
		)
	`)
	require.NoError(t, err)

	registry, err := metadata.NewRegistry(map[string]metadata.ModelDefinition{
		"article": {
			TableName: "articles",
			Attributes: map[string]metadata.Attribute{
				"id":    {Type: metadata.TypeUUID, Generated: true},
				"title": {Type: metadata.TypeString, Required: true},
				"slug":  {Type: metadata.TypeString, Unique: true},
				"views": {Type: metadata.TypeInteger, Default: 0},
			},
		},
	})
	require.NoError(t, err)

	bus := lifecycle.NewBus()
	return &testEnv{
		conn: conn,
		bus:  bus,
		mgr:  NewManager(registry, conn, bus, nil),
	}
}

func (e *testEnv) articles(t *testing.T) *Repository {
	t.Helper()
	repo, err := e.mgr.Repository("article")
	require.NoError(t, err)
	return repo
}

func TestManager_Repository_Unknown(t *testing.T) {
	env := setupEnv(t)

	_, err := env.mgr.Repository("page")
	var unknownErr *metadata.UnknownModelError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "page", unknownErr.UID)
}

func TestManager_Repository_Cached(t *testing.T) {
	env := setupEnv(t)

	a, err := env.mgr.Repository("article")
	require.NoError(t, err)
	b, err := env.mgr.Repository("article")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRepository_Create(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)

	created, err := repo.Create(context.Background(), map[string]interface{}{
		"title": "Hello",
		"slug":  "hello",
	})
	require.NoError(t, err)

	// generated id and declared default are populated
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "Hello", created["title"])
	assert.EqualValues(t, 0, created["views"])
}

func TestRepository_Create_UnknownAttribute(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)

	_, err := repo.Create(context.Background(), map[string]interface{}{
		"title":   "Hello",
		"missing": true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute")
}

func TestRepository_Create_UniqueViolation(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, map[string]interface{}{"title": "A", "slug": "same"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, map[string]interface{}{"title": "B", "slug": "same"})
	require.ErrorIs(t, err, ErrUniqueViolation)
}

func TestRepository_Create_LifecycleOrder(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)

	var events []lifecycle.Action
	env.bus.Subscribe("article", lifecycle.BeforeCreate, func(ctx context.Context, ev *lifecycle.Event) error {
		events = append(events, ev.Action)
		assert.Nil(t, ev.Result)
		return nil
	})
	env.bus.Subscribe("article", lifecycle.AfterCreate, func(ctx context.Context, ev *lifecycle.Event) error {
		events = append(events, ev.Action)
		result, ok := ev.Result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Hello", result["title"])
		return nil
	})

	_, err := repo.Create(context.Background(), map[string]interface{}{"title": "Hello", "slug": "hello"})
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Action{lifecycle.BeforeCreate, lifecycle.AfterCreate}, events)
}

func TestRepository_SubscriberFailureSurfaces(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)

	boom := fmt.Errorf("subscriber boom")
	env.bus.Subscribe("article", lifecycle.BeforeCreate, func(ctx context.Context, ev *lifecycle.Event) error {
		return boom
	})

	_, err := repo.Create(context.Background(), map[string]interface{}{"title": "Hello"})
	require.ErrorIs(t, err, boom)

	// the insert must not have happened
	count, err := repo.Count(context.Background(), Params{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRepository_FindMany_Contains(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	for _, slug := range []string{"post", "post-1", "news"} {
		_, err := repo.Create(ctx, map[string]interface{}{"title": slug, "slug": slug})
		require.NoError(t, err)
	}

	results, err := repo.FindMany(ctx, Params{
		Filters: []query.Condition{query.Contains("slug", "post")},
		OrderBy: []query.Order{{Field: "slug"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "post", results[0]["slug"])
	assert.Equal(t, "post-1", results[1]["slug"])

	// identical filters are safe to retry
	again, err := repo.FindMany(ctx, Params{
		Filters: []query.Condition{query.Contains("slug", "post")},
		OrderBy: []query.Order{{Field: "slug"}},
	})
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

// findUniqueSlug is the uniqueness-finder pattern collaborators layer on the
// repository: seed a contains filter with existing rows, then pick the first
// free suffix.
func findUniqueSlug(t *testing.T, repo *Repository, base string) string {
	t.Helper()

	existing, err := repo.FindMany(context.Background(), Params{
		Select:  []string{"slug"},
		Filters: []query.Condition{query.Contains("slug", base)},
	})
	require.NoError(t, err)

	taken := make(map[string]bool, len(existing))
	for _, row := range existing {
		if s, ok := row["slug"].(string); ok {
			taken[s] = true
		}
	}

	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func TestRepository_UniqueSlugScenario(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, map[string]interface{}{
		"title": "Post",
		"slug":  findUniqueSlug(t, repo, "post"),
	})
	require.NoError(t, err)
	assert.Equal(t, "post", first["slug"])

	second, err := repo.Create(ctx, map[string]interface{}{
		"title": "Post",
		"slug":  findUniqueSlug(t, repo, "post"),
	})
	require.NoError(t, err)
	assert.Equal(t, "post-1", second["slug"])
}

func TestRepository_FindOne(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, map[string]interface{}{"title": "A", "slug": "a"})
	require.NoError(t, err)

	record, err := repo.FindOne(ctx, Params{Filters: []query.Condition{query.Eq("slug", "a")}})
	require.NoError(t, err)
	assert.Equal(t, "A", record["title"])

	_, err = repo.FindOne(ctx, Params{Filters: []query.Condition{query.Eq("slug", "zzz")}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Update(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, map[string]interface{}{"title": "Old", "slug": "u"})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created["id"], map[string]interface{}{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated["title"])
	assert.Equal(t, "u", updated["slug"])

	_, err = repo.Update(ctx, "no-such-id", map[string]interface{}{"title": "X"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_UpdateSubscriberCannotMutateCallerMap(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	env.bus.Subscribe("article", lifecycle.BeforeUpdate, func(ctx context.Context, ev *lifecycle.Event) error {
		ev.Data["title"] = "Rewritten"
		return nil
	})

	created, err := repo.Create(ctx, map[string]interface{}{"title": "Old", "slug": "m"})
	require.NoError(t, err)

	data := map[string]interface{}{"title": "New"}
	updated, err := repo.Update(ctx, created["id"], data)
	require.NoError(t, err)

	// the subscriber's change reaches the row, not the caller's map
	assert.Equal(t, "Rewritten", updated["title"])
	assert.Equal(t, map[string]interface{}{"title": "New"}, data)
}

func TestRepository_Delete(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, map[string]interface{}{"title": "A", "slug": "a"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created["id"]))
	require.ErrorIs(t, repo.Delete(ctx, created["id"]), ErrNotFound)
}

func TestRepository_DeleteMany(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	for _, slug := range []string{"post", "post-1", "news"} {
		_, err := repo.Create(ctx, map[string]interface{}{"title": slug, "slug": slug})
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteMany(ctx, query.Contains("slug", "post"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := repo.Count(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_CreateMany(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)

	results, err := repo.CreateMany(context.Background(), []map[string]interface{}{
		{"title": "A", "slug": "a"},
		{"title": "B", "slug": "b"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestRepository_AmbientTransactionRollback(t *testing.T) {
	env := setupEnv(t)
	repo := env.articles(t)
	ctx := context.Background()

	mgr := transaction.NewManager(env.conn.Conn())
	tx, err := mgr.Begin(ctx)
	require.NoError(t, err)

	txCtx := transaction.WithTransaction(ctx, tx)
	_, err = repo.Create(txCtx, map[string]interface{}{"title": "A", "slug": "a"})
	require.NoError(t, err)
	_, err = repo.Create(txCtx, map[string]interface{}{"title": "B", "slug": "b"})
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	// both writes are gone with the transaction
	count, err := repo.Count(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
