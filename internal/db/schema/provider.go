// Package schema computes the structural difference between the metadata
// registry and the live database schema, and applies it under explicit
// confirmation. Destructive statements are never executed unless the caller
// opts in.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/transaction"
)

// ChangeType classifies one schema change
type ChangeType int

const (
	AddTable ChangeType = iota
	DropTable
	AddColumn
	DropColumn
	ModifyColumn
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	switch c {
	case AddTable:
		return "add_table"
	case DropTable:
		return "drop_table"
	case AddColumn:
		return "add_column"
	case DropColumn:
		return "drop_column"
	case ModifyColumn:
		return "modify_column"
	default:
		return "unknown"
	}
}

// Change is one detected difference with its DDL statement
type Change struct {
	Type        ChangeType
	Table       string
	Column      string
	SQL         string
	Destructive bool
}

// ColumnInfo describes one live column
type ColumnInfo struct {
	Name    string
	Type    string
	NotNull bool
}

// Table describes one live table
type Table struct {
	Name    string
	Columns []ColumnInfo
}

// ApplyOptions controls Apply behavior
type ApplyOptions struct {
	// AllowDestructive permits DROP TABLE and DROP COLUMN statements
	AllowDestructive bool
}

// Provider diffs and reconciles the live schema against the registry
type Provider struct {
	registry *metadata.Registry
	conn     *connection.Manager
	log      *zap.Logger

	// tables owned by other components, never reported as drops
	ignored map[string]bool
}

// NewProvider creates a schema provider. ignoredTables lists tables that
// belong to other components (the migration tracker) and must not be
// reported as removals.
func NewProvider(registry *metadata.Registry, conn *connection.Manager, log *zap.Logger, ignoredTables ...string) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	ignored := make(map[string]bool, len(ignoredTables))
	for _, name := range ignoredTables {
		ignored[name] = true
	}
	return &Provider{
		registry: registry,
		conn:     conn,
		log:      log,
		ignored:  ignored,
	}
}

// Diff computes the changes needed to bring the live schema in line with
// the registry
func (p *Provider) Diff(ctx context.Context) ([]Change, error) {
	live, err := p.Introspect(ctx)
	if err != nil {
		return nil, err
	}

	var changes []Change
	d := p.conn.Dialect()

	for _, uid := range p.registry.UIDs() {
		meta, err := p.registry.Get(uid)
		if err != nil {
			return nil, err
		}

		liveTable, exists := live[meta.TableName]
		if !exists {
			sqlText, err := p.createTableSQL(meta)
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{Type: AddTable, Table: meta.TableName, SQL: sqlText})
			continue
		}

		liveCols := make(map[string]ColumnInfo, len(liveTable.Columns))
		for _, col := range liveTable.Columns {
			liveCols[col.Name] = col
		}

		for _, col := range meta.Columns {
			colType, err := d.ColumnType(col)
			if err != nil {
				return nil, err
			}

			liveCol, present := liveCols[col.Column]
			if !present {
				changes = append(changes, Change{
					Type:   AddColumn,
					Table:  meta.TableName,
					Column: col.Column,
					SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
						p.conn.Table(meta.TableName), p.columnSQL(col, colType)),
				})
				continue
			}

			if !typesEqual(liveCol.Type, colType) {
				change := Change{
					Type:        ModifyColumn,
					Table:       meta.TableName,
					Column:      col.Column,
					Destructive: true,
				}
				// sqlite cannot alter a column type in place
				if d.Name() == "postgres" {
					change.SQL = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
						p.conn.Table(meta.TableName), d.QuoteIdentifier(col.Column), colType)
				}
				changes = append(changes, change)
			}
		}

		wanted := make(map[string]bool, len(meta.Columns))
		for _, col := range meta.Columns {
			wanted[col.Column] = true
		}
		for _, liveCol := range liveTable.Columns {
			if !wanted[liveCol.Name] {
				changes = append(changes, Change{
					Type:        DropColumn,
					Table:       meta.TableName,
					Column:      liveCol.Name,
					Destructive: true,
					SQL: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
						p.conn.Table(meta.TableName), d.QuoteIdentifier(liveCol.Name)),
				})
			}
		}
	}

	// live tables with no registry entry
	registered := make(map[string]bool)
	for _, uid := range p.registry.UIDs() {
		meta, _ := p.registry.Get(uid)
		registered[meta.TableName] = true
	}
	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !registered[name] && !p.ignored[name] {
			changes = append(changes, Change{
				Type:        DropTable,
				Table:       name,
				Destructive: true,
				SQL:         fmt.Sprintf("DROP TABLE %s", p.conn.Table(name)),
			})
		}
	}

	return changes, nil
}

// Apply executes the computed diff inside one transaction. Destructive
// changes are skipped unless opts.AllowDestructive is set. Returns the
// number of applied changes.
func (p *Provider) Apply(ctx context.Context, opts ApplyOptions) (int, error) {
	changes, err := p.Diff(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	mgr := transaction.NewManager(p.conn.Conn())
	err = mgr.WithTransaction(ctx, func(txCtx context.Context) error {
		tx, _ := transaction.FromContext(txCtx)
		q := p.conn.SchemaQuerier(tx)

		for _, change := range changes {
			if change.Destructive && !opts.AllowDestructive {
				p.log.Warn("skipping destructive schema change",
					zap.String("type", change.Type.String()),
					zap.String("table", change.Table),
					zap.String("column", change.Column))
				continue
			}
			if change.SQL == "" {
				continue
			}
			if _, err := q.ExecContext(txCtx, change.SQL); err != nil {
				return fmt.Errorf("schema change %s on %s failed: %w", change.Type, change.Table, err)
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	p.log.Info("schema reconciled", zap.Int("applied", applied), zap.Int("detected", len(changes)))
	return applied, nil
}

// createTableSQL renders the CREATE TABLE statement for a metadata entry
func (p *Provider) createTableSQL(meta *metadata.Metadata) (string, error) {
	d := p.conn.Dialect()

	cols := make([]string, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		colType, err := d.ColumnType(col)
		if err != nil {
			return "", err
		}
		cols = append(cols, p.columnSQL(col, colType))
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)",
		p.conn.Table(meta.TableName), strings.Join(cols, ", ")), nil
}

// columnSQL renders one column definition
func (p *Provider) columnSQL(col *metadata.Column, colType string) string {
	d := p.conn.Dialect()

	var sb strings.Builder
	sb.WriteString(d.QuoteIdentifier(col.Column))
	sb.WriteString(" ")
	sb.WriteString(colType)
	if col.Name == "id" {
		sb.WriteString(" PRIMARY KEY")
	}
	if col.Required {
		sb.WriteString(" NOT NULL")
	}
	if col.Unique && col.Name != "id" {
		sb.WriteString(" UNIQUE")
	}
	return sb.String()
}

// typesEqual compares a live column type with the dialect's rendering.
// The postgres catalog reports base types without length or precision
// modifiers ("character varying", not "varchar(255)"), so both sides are
// reduced to their base form before comparing.
func typesEqual(live, wanted string) bool {
	return baseType(live) == baseType(wanted)
}

// baseType lowercases a column type, strips any (n) or (p,s) modifier and
// folds the catalog's long names to their short aliases
func baseType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "("); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch s {
	case "character varying":
		return "varchar"
	case "character":
		return "char"
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	}
	return s
}
