// Package migrate runs ordered, idempotent data migrations. Every migration
// executes inside its own transaction together with its bookkeeping record,
// so a failed migration leaves no trace and a re-run picks up exactly where
// the last run stopped.
package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/transaction"
)

// Migration is one versioned schema or data change. Down is optional; a
// migration without it cannot be reverted.
type Migration struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, q transaction.Querier) error
	Down    func(ctx context.Context, q transaction.Querier) error
}

// MigrationError reports which migration failed
type MigrationError struct {
	Version int64
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Status describes one migration's applied state
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Runner executes pending migrations in version order
type Runner struct {
	conn       *connection.Manager
	tracker    *Tracker
	migrations []Migration
	log        *zap.Logger
}

// NewRunner creates a runner over the given migrations. Versions must be
// unique and migrations must have an Up function.
func NewRunner(conn *connection.Manager, migrations []Migration, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[int64]string, len(sorted))
	for _, m := range sorted {
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d (%s) has no up function", m.Version, m.Name)
		}
		if prev, dup := seen[m.Version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d (%s and %s)", m.Version, prev, m.Name)
		}
		seen[m.Version] = m.Name
	}

	return &Runner{
		conn:       conn,
		tracker:    NewTracker(conn),
		migrations: sorted,
		log:        log,
	}, nil
}

// Up applies all pending migrations in ascending version order and returns
// how many ran. Execution halts at the first failure; already applied
// migrations stay committed.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.tracker.Initialize(ctx); err != nil {
		return 0, err
	}
	applied, err := r.tracker.Applied(ctx)
	if err != nil {
		return 0, err
	}

	mgr := transaction.NewManager(r.conn.Conn())
	ran := 0
	for _, m := range r.migrations {
		if _, done := applied[m.Version]; done {
			continue
		}

		r.log.Info("applying migration",
			zap.Int64("version", m.Version),
			zap.String("name", m.Name))

		err := mgr.WithTransaction(ctx, func(txCtx context.Context) error {
			q := transaction.ResolveQuerier(txCtx, r.conn.Conn())
			if err := m.Up(txCtx, q); err != nil {
				return err
			}
			return r.tracker.Record(txCtx, m)
		})
		if err != nil {
			return ran, &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
		ran++
	}
	return ran, nil
}

// Down reverts up to steps applied migrations in descending version order.
// A migration without a Down function stops the revert.
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	if err := r.tracker.Initialize(ctx); err != nil {
		return 0, err
	}
	applied, err := r.tracker.Applied(ctx)
	if err != nil {
		return 0, err
	}

	mgr := transaction.NewManager(r.conn.Conn())
	reverted := 0
	for i := len(r.migrations) - 1; i >= 0 && reverted < steps; i-- {
		m := r.migrations[i]
		if _, done := applied[m.Version]; !done {
			continue
		}
		if m.Down == nil {
			return reverted, &MigrationError{
				Version: m.Version, Name: m.Name,
				Err: fmt.Errorf("migration is not reversible"),
			}
		}

		r.log.Info("reverting migration",
			zap.Int64("version", m.Version),
			zap.String("name", m.Name))

		err := mgr.WithTransaction(ctx, func(txCtx context.Context) error {
			q := transaction.ResolveQuerier(txCtx, r.conn.Conn())
			if err := m.Down(txCtx, q); err != nil {
				return err
			}
			return r.tracker.Remove(txCtx, m.Version)
		})
		if err != nil {
			return reverted, &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
		reverted++
	}
	return reverted, nil
}

// Status reports every known migration with its applied state, in version
// order
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.tracker.Initialize(ctx); err != nil {
		return nil, err
	}
	applied, err := r.tracker.Applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		st := Status{Version: m.Version, Name: m.Name}
		if rec, done := applied[m.Version]; done {
			st.Applied = true
			st.AppliedAt = rec.AppliedAt
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
