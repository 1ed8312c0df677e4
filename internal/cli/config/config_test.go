package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Client)
	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.True(t, cfg.Database.ForceMigration)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("DATABASE_URL", "")

	yml := `
database:
  client: sqlite
  url: app.db
  force_migration: false
  pool:
    max_open: 5
    max_idle: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strapi.yml"), []byte(yml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Client)
	assert.Equal(t, "app.db", cfg.Database.URL)
	assert.False(t, cfg.Database.ForceMigration)
	assert.Equal(t, 5, cfg.Database.Pool.MaxOpen)
	assert.Equal(t, 2, cfg.Database.Pool.MaxIdle)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	yml := "database:\n  url: postgres://file/app\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strapi.yml"), []byte(yml), 0o644))
	t.Setenv("DATABASE_URL", "postgres://env/app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/app", cfg.Database.URL)
}

func TestLoad_Models(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	yml := `
models:
  api::article.article:
    table_name: articles
    attributes:
      id:
        type: uuid
        generated: true
      title:
        type: string
        required: true
      author:
        type: relation
        target: api::author.author
        relation: manyToOne
  api::author.author:
    attributes:
      id:
        type: uuid
        generated: true
      name:
        type: string
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strapi.yml"), []byte(yml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Models, 2)

	defs, err := cfg.ModelDefinitions()
	require.NoError(t, err)
	article := defs["api::article.article"]
	assert.Equal(t, "articles", article.TableName)
	assert.True(t, article.Attributes["title"].Required)
	assert.Equal(t, "api::author.author", article.Attributes["author"].Target)
}

func TestLoad_ModelsBadType(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	yml := `
models:
  thing:
    attributes:
      id:
        type: flavor
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strapi.yml"), []byte(yml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.ModelDefinitions()
	assert.ErrorContains(t, err, `unknown attribute type "flavor"`)
}

func TestLoad_MissingURL(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "no database URL configured")
}
