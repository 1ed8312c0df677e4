package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/transaction"
)

// Create inserts a new record and returns the stored row. Generated ids and
// metadata defaults are populated for attributes the caller omitted.
func (r *Repository) Create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	// copy to avoid mutating the caller's map
	record := make(map[string]interface{}, len(data))
	for k, v := range data {
		record[k] = v
	}

	if err := r.populateDefaults(record); err != nil {
		return nil, err
	}

	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeCreate,
		Data:   record,
		State:  state,
	}); err != nil {
		return nil, err
	}

	inserted, err := r.insert(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterCreate,
		Data:   record,
		Result: inserted,
		State:  state,
	}); err != nil {
		return nil, err
	}

	return inserted, nil
}

// CreateMany inserts records one by one, firing lifecycle events per record.
// Inside an ambient transaction the whole batch shares its atomicity.
func (r *Repository) CreateMany(ctx context.Context, records []map[string]interface{}) ([]map[string]interface{}, error) {
	results := make([]map[string]interface{}, 0, len(records))
	for i, data := range records {
		inserted, err := r.Create(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("create %d of %d failed: %w", i+1, len(records), err)
		}
		results = append(results, inserted)
	}
	return results, nil
}

// populateDefaults fills generated ids and declared default values for
// attributes absent from the record
func (r *Repository) populateDefaults(record map[string]interface{}) error {
	for _, col := range r.meta.Columns {
		if _, present := record[col.Name]; present {
			continue
		}
		if col.Generated && col.Type == metadata.TypeUUID {
			record[col.Name] = uuid.NewString()
			continue
		}
		if col.Default != nil {
			record[col.Name] = col.Default
		}
	}
	return nil
}

// insert builds and executes the INSERT statement
func (r *Repository) insert(ctx context.Context, record map[string]interface{}) (map[string]interface{}, error) {
	d := r.conn.Dialect()

	// reject attributes the metadata does not know
	for name := range record {
		if _, ok := r.meta.Column(name); !ok {
			return nil, fmt.Errorf("unknown attribute %q on model %s", name, r.meta.UID)
		}
	}

	var fields, placeholders []string
	var values []interface{}
	for _, col := range r.meta.Columns {
		v, present := record[col.Name]
		if !present {
			continue
		}
		values = append(values, v)
		fields = append(fields, d.QuoteIdentifier(col.Column))
		placeholders = append(placeholders, d.Placeholder(len(values)))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("create on model %s has no attributes", r.meta.UID)
	}

	table := r.conn.Table(r.meta.TableName)
	q := transaction.ResolveQuerier(ctx, r.conn.Conn())

	if d.SupportsReturning() {
		returning := make([]string, len(r.meta.Columns))
		for i, col := range r.meta.Columns {
			returning[i] = d.QuoteIdentifier(col.Column)
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			table,
			strings.Join(fields, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(returning, ", "))

		row := q.QueryRowContext(ctx, stmt, values...)
		inserted, err := scanRowColumns(row, r.meta.ColumnNames())
		if err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
		}
		return inserted, nil
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "))

	if _, err := q.ExecContext(ctx, stmt, values...); err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
	}
	return record, nil
}
