// Package repository is the entity-manager surface of the data-access core.
// Each repository serves one model UID: it resolves the compiled metadata,
// joins the ambient transaction when one is active, fires lifecycle events
// around every operation and translates abstract filters into dialect SQL.
package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/query"
)

// Manager hands out per-UID repositories
type Manager struct {
	registry *metadata.Registry
	conn     *connection.Manager
	bus      *lifecycle.Bus
	log      *zap.Logger

	mu    sync.Mutex
	repos map[string]*Repository
}

// NewManager creates the entity manager over an already validated registry
func NewManager(registry *metadata.Registry, conn *connection.Manager, bus *lifecycle.Bus, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		registry: registry,
		conn:     conn,
		bus:      bus,
		log:      log,
		repos:    make(map[string]*Repository),
	}
}

// Repository returns the repository for a model UID, failing with
// metadata.UnknownModelError when the UID is not registered
func (m *Manager) Repository(uid string) (*Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if repo, ok := m.repos[uid]; ok {
		return repo, nil
	}

	meta, err := m.registry.Get(uid)
	if err != nil {
		return nil, err
	}

	repo := &Repository{
		meta: meta,
		conn: m.conn,
		bus:  m.bus,
		log:  m.log,
	}
	m.repos[uid] = repo
	return repo, nil
}

// Builder returns the lower-level query builder for a model UID
func (m *Manager) Builder(uid string) (*query.Builder, error) {
	meta, err := m.registry.Get(uid)
	if err != nil {
		return nil, err
	}
	return query.NewBuilder(meta, m.conn), nil
}

// Repository provides CRUD and query operations for one model
type Repository struct {
	meta *metadata.Metadata
	conn *connection.Manager
	bus  *lifecycle.Bus
	log  *zap.Logger
}

// Metadata returns the compiled metadata entry the repository serves
func (r *Repository) Metadata() *metadata.Metadata {
	return r.meta
}

// Params is the abstract query shape accepted by read operations
type Params struct {
	Select  []string
	Filters []query.Condition
	OrderBy []query.Order
	Limit   int // 0 means no limit
	Offset  int
}

// builder translates Params into a query builder
func (r *Repository) builder(params Params) *query.Builder {
	b := query.NewBuilder(r.meta, r.conn)
	if len(params.Select) > 0 {
		b.Select(params.Select...)
	}
	if len(params.Filters) > 0 {
		b.Where(params.Filters...)
	}
	for _, ord := range params.OrderBy {
		if ord.Desc {
			b.OrderByDesc(ord.Field)
		} else {
			b.OrderBy(ord.Field)
		}
	}
	if params.Limit > 0 {
		b.Limit(params.Limit)
	}
	if params.Offset > 0 {
		b.Offset(params.Offset)
	}
	return b
}

// publish fires one lifecycle event when a bus is attached
func (r *Repository) publish(ctx context.Context, ev *lifecycle.Event) error {
	if r.bus == nil {
		return nil
	}
	return r.bus.Publish(ctx, ev)
}
