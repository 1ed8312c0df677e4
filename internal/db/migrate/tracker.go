package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/transaction"
)

// TrackerTable is the bookkeeping table. The schema provider must be told
// to leave it alone.
const TrackerTable = "strapi_migrations"

// Record is one applied migration
type Record struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Tracker persists which migrations have run
type Tracker struct {
	conn *connection.Manager
}

// NewTracker creates a tracker on the given connection
func NewTracker(conn *connection.Manager) *Tracker {
	return &Tracker{conn: conn}
}

// Initialize creates the bookkeeping table when missing
func (t *Tracker) Initialize(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`, t.conn.Table(TrackerTable))

	if _, err := t.conn.Conn().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating migration table: %w", err)
	}
	return nil
}

// Applied returns the recorded migrations keyed by version
func (t *Tracker) Applied(ctx context.Context) (map[int64]Record, error) {
	q := transaction.ResolveQuerier(ctx, t.conn.Conn())
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT version, name, applied_at FROM %s ORDER BY version", t.conn.Table(TrackerTable)))
	if err != nil {
		return nil, fmt.Errorf("reading migration table: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]Record)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.Name, &rec.AppliedAt); err != nil {
			return nil, err
		}
		applied[rec.Version] = rec
	}
	return applied, rows.Err()
}

// Record marks a migration as applied. It participates in the ambient
// transaction so the mark commits or rolls back with the migration itself.
func (t *Tracker) Record(ctx context.Context, m Migration) error {
	q := transaction.ResolveQuerier(ctx, t.conn.Conn())
	d := t.conn.Dialect()
	_, err := q.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (version, name, applied_at) VALUES (%s, %s, %s)",
		t.conn.Table(TrackerTable), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3)),
		m.Version, m.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording migration %d: %w", m.Version, err)
	}
	return nil
}

// Remove clears the record for a reverted migration
func (t *Tracker) Remove(ctx context.Context, version int64) error {
	q := transaction.ResolveQuerier(ctx, t.conn.Conn())
	d := t.conn.Dialect()
	_, err := q.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE version = %s", t.conn.Table(TrackerTable), d.Placeholder(1)),
		version)
	if err != nil {
		return fmt.Errorf("removing migration record %d: %w", version, err)
	}
	return nil
}
