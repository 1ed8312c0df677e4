package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/centogram/strapi/internal/cli/config"
	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/dialect"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/migrate"
	"github.com/centogram/strapi/internal/db/transaction"
)

// openConnection loads strapi.yml and opens the configured database
func openConnection(ctx context.Context) (*connection.Manager, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	d, err := dialect.Resolve(cfg.Database.Client)
	if err != nil {
		return nil, nil, err
	}

	dcfg := dialect.Config{
		Client: cfg.Database.Client,
		DSN:    cfg.Database.URL,
		Schema: cfg.Database.Schema,
		Pool: dialect.PoolConfig{
			MaxOpen: cfg.Database.Pool.MaxOpen,
			MaxIdle: cfg.Database.Pool.MaxIdle,
		},
	}
	if err := d.Configure(&dcfg); err != nil {
		return nil, nil, err
	}

	conn, err := connection.New(ctx, d, dcfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, cfg, nil
}

// loadRegistry compiles the models declared in strapi.yml
func loadRegistry(cfg *config.Config) (*metadata.Registry, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("no models declared in strapi.yml")
	}
	defs, err := cfg.ModelDefinitions()
	if err != nil {
		return nil, err
	}
	return metadata.NewRegistry(defs)
}

// migration file names look like 001_create_articles.sql, with an optional
// 001_create_articles.down.sql companion
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// loadMigrations reads the SQL migrations from the migrations/ directory
func loadMigrations() ([]migrate.Migration, error) {
	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		return nil, err
	}

	var migrations []migrate.Migration
	for _, file := range files {
		base := filepath.Base(file)
		if strings.HasSuffix(base, ".down.sql") {
			continue
		}
		m := migrationFilePattern.FindStringSubmatch(base)
		if m == nil {
			return nil, fmt.Errorf("migration file %s does not match NNN_name.sql", base)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration file %s: %w", base, err)
		}

		migration := migrate.Migration{
			Version: version,
			Name:    m[2],
			Up:      execFileMigration(file),
		}
		downFile := strings.TrimSuffix(file, ".sql") + ".down.sql"
		if _, err := os.Stat(downFile); err == nil {
			migration.Down = execFileMigration(downFile)
		}
		migrations = append(migrations, migration)
	}
	return migrations, nil
}

// execFileMigration reads the file lazily so a missing or unreadable file
// fails the migration, not the listing
func execFileMigration(file string) func(ctx context.Context, q transaction.Querier) error {
	return func(ctx context.Context, q transaction.Querier) error {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := q.ExecContext(ctx, string(content)); err != nil {
			return err
		}
		return nil
	}
}
