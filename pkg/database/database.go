// Package database is the public entry point. It wires the dialect,
// connection, metadata registry, lifecycle bus, repositories, schema
// reconciliation and migrations into a single handle.
package database

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/dialect"
	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/migrate"
	"github.com/centogram/strapi/internal/db/query"
	"github.com/centogram/strapi/internal/db/repository"
	"github.com/centogram/strapi/internal/db/schema"
	"github.com/centogram/strapi/internal/db/transaction"
)

// ErrDestroyed is returned from any call made after Destroy
var ErrDestroyed = errors.New("database: already destroyed")

// Record errors, re-exported so callers depend on this package alone
var (
	ErrNotFound            = repository.ErrNotFound
	ErrUniqueViolation     = repository.ErrUniqueViolation
	ErrForeignKeyViolation = repository.ErrForeignKeyViolation
	ErrNotNullViolation    = repository.ErrNotNullViolation
)

// Re-exported types for model definitions and queries
type (
	ModelDefinition = metadata.ModelDefinition
	Attribute       = metadata.Attribute
	Params          = repository.Params
	Condition       = query.Condition
	Migration       = migrate.Migration
	Event           = lifecycle.Event
	Subscriber      = lifecycle.Subscriber
)

// Re-exported error types
type (
	UnknownModelError = metadata.UnknownModelError
	SchemaError       = metadata.SchemaError
	ConnectionError   = connection.Error
	TransactionError  = transaction.TransactionError
	MigrationError    = migrate.MigrationError
)

// Attribute types, re-exported from the metadata package
const (
	TypeString     = metadata.TypeString
	TypeText       = metadata.TypeText
	TypeInteger    = metadata.TypeInteger
	TypeBigInteger = metadata.TypeBigInteger
	TypeFloat      = metadata.TypeFloat
	TypeDecimal    = metadata.TypeDecimal
	TypeBoolean    = metadata.TypeBoolean
	TypeDatetime   = metadata.TypeDatetime
	TypeDate       = metadata.TypeDate
	TypeJSON       = metadata.TypeJSON
	TypeUUID       = metadata.TypeUUID
	TypeRelation   = metadata.TypeRelation
)

// Relation kinds, re-exported from the metadata package
const (
	OneToOne   = metadata.OneToOne
	OneToMany  = metadata.OneToMany
	ManyToOne  = metadata.ManyToOne
	ManyToMany = metadata.ManyToMany
)

// ConnectionConfig holds the connection settings
type ConnectionConfig struct {
	// Client selects the dialect: "postgres" or "sqlite"
	Client string
	DSN    string
	Schema string
	Pool   dialect.PoolConfig
}

// Settings tunes startup behavior
type Settings struct {
	// ForceMigration reconciles the schema with the models on startup.
	// Defaults to true; only non-destructive changes are applied.
	ForceMigration *bool
	// IsolatedHooks keeps one failing lifecycle subscriber from aborting
	// the others
	IsolatedHooks bool
}

// Config configures New
type Config struct {
	Connection ConnectionConfig
	Models     map[string]ModelDefinition
	Settings   Settings
	Migrations []Migration
	Logger     *zap.Logger
}

// Database is the assembled data layer
type Database struct {
	conn      *connection.Manager
	registry  *metadata.Registry
	bus       *lifecycle.Bus
	repos     *repository.Manager
	txmgr     *transaction.Manager
	schema    *schema.Provider
	runner    *migrate.Runner
	log       *zap.Logger
	destroyed atomic.Bool
}

// New connects, registers the models, reconciles the schema when enabled,
// runs pending migrations and returns the ready database.
func New(ctx context.Context, cfg Config) (*Database, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	client := cfg.Connection.Client
	if client == "" {
		client = "postgres"
	}
	d, err := dialect.Resolve(client)
	if err != nil {
		return nil, err
	}

	dcfg := dialect.Config{
		Client: client,
		DSN:    cfg.Connection.DSN,
		Schema: cfg.Connection.Schema,
		Pool:   cfg.Connection.Pool,
	}
	if err := d.Configure(&dcfg); err != nil {
		return nil, err
	}

	registry, err := metadata.NewRegistry(cfg.Models)
	if err != nil {
		return nil, err
	}

	conn, err := connection.New(ctx, d, dcfg, log)
	if err != nil {
		return nil, err
	}

	var busOpts []lifecycle.Option
	if cfg.Settings.IsolatedHooks {
		busOpts = append(busOpts, lifecycle.WithIsolation(log))
	}
	bus := lifecycle.NewBus(busOpts...)

	db := &Database{
		conn:     conn,
		registry: registry,
		bus:      bus,
		repos:    repository.NewManager(registry, conn, bus, log),
		txmgr:    transaction.NewManager(conn.Conn()),
		schema:   schema.NewProvider(registry, conn, log, migrate.TrackerTable),
		log:      log,
	}

	runner, err := migrate.NewRunner(conn, cfg.Migrations, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	db.runner = runner

	force := true
	if cfg.Settings.ForceMigration != nil {
		force = *cfg.Settings.ForceMigration
	}
	if force {
		if _, err := db.schema.Apply(ctx, schema.ApplyOptions{}); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if len(cfg.Migrations) > 0 {
		if _, err := runner.Up(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	log.Info("database ready",
		zap.String("client", client),
		zap.Int("models", registry.Len()))
	return db, nil
}

// Query returns the repository for a model UID
func (db *Database) Query(uid string) (*repository.Repository, error) {
	if db.destroyed.Load() {
		return nil, ErrDestroyed
	}
	return db.repos.Repository(uid)
}

// QueryBuilder returns a fresh query builder for a model UID
func (db *Database) QueryBuilder(uid string) (*query.Builder, error) {
	if db.destroyed.Load() {
		return nil, ErrDestroyed
	}
	return db.repos.Builder(uid)
}

// Metadata returns the compiled metadata for a model UID
func (db *Database) Metadata(uid string) (*metadata.Metadata, error) {
	return db.registry.Get(uid)
}

// Subscribe attaches a lifecycle subscriber for a model UID and action and
// returns its unsubscribe function
func (db *Database) Subscribe(uid string, action lifecycle.Action, fn Subscriber) func() {
	return db.bus.Subscribe(uid, action, fn)
}

// Connection exposes the connection manager
func (db *Database) Connection() *connection.Manager {
	return db.conn
}

// Schema exposes the schema provider for explicit diff and apply
func (db *Database) Schema() *schema.Provider {
	return db.schema
}

// Migrations exposes the migration runner
func (db *Database) Migrations() *migrate.Runner {
	return db.runner
}

// Destroy clears all lifecycle subscribers and closes the connection pool.
// A second call returns ErrDestroyed.
func (db *Database) Destroy() error {
	if !db.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}
	db.bus.Clear()
	return db.conn.Close()
}
