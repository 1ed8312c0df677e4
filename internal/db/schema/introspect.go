package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Introspect reads the live tables and columns from the database catalog
func (p *Provider) Introspect(ctx context.Context) (map[string]*Table, error) {
	switch p.conn.Dialect().Name() {
	case "postgres":
		return p.introspectPostgres(ctx)
	case "sqlite":
		return p.introspectSQLite(ctx)
	default:
		return nil, fmt.Errorf("introspection not supported for dialect %q", p.conn.Dialect().Name())
	}
}

func (p *Provider) introspectPostgres(ctx context.Context) (map[string]*Table, error) {
	schemaName := p.conn.Schema()
	if schemaName == "" {
		schemaName = p.conn.Dialect().DefaultSchema()
	}

	rows, err := p.conn.Conn().QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("reading information_schema: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*Table)
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, err
		}
		table, ok := tables[tableName]
		if !ok {
			table = &Table{Name: tableName}
			tables[tableName] = table
		}
		table.Columns = append(table.Columns, ColumnInfo{
			Name:    columnName,
			Type:    dataType,
			NotNull: nullable == "NO",
		})
	}
	return tables, rows.Err()
}

func (p *Provider) introspectSQLite(ctx context.Context) (map[string]*Table, error) {
	rows, err := p.conn.Conn().QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make(map[string]*Table, len(names))
	for _, name := range names {
		table, err := p.sqliteTableInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		tables[name] = table
	}
	return tables, nil
}

func (p *Provider) sqliteTableInfo(ctx context.Context, name string) (*Table, error) {
	rows, err := p.conn.Conn().QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", p.conn.Dialect().QuoteIdentifier(name)))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer rows.Close()

	table := &Table{Name: name}
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, ColumnInfo{
			Name:    colName,
			Type:    colType,
			NotNull: notNull == 1,
		})
	}
	return table, rows.Err()
}
