package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/query"
	"github.com/centogram/strapi/internal/db/transaction"
)

// idColumn resolves the primary key column of the model
func (r *Repository) idColumn() (string, error) {
	col, ok := r.meta.Column("id")
	if !ok {
		return "", fmt.Errorf("model %s has no id attribute", r.meta.UID)
	}
	return col.Column, nil
}

// Update modifies the record identified by id and returns the stored row
func (r *Repository) Update(ctx context.Context, id interface{}, data map[string]interface{}) (map[string]interface{}, error) {
	idCol, err := r.idColumn()
	if err != nil {
		return nil, err
	}

	for name := range data {
		if _, ok := r.meta.Column(name); !ok {
			return nil, fmt.Errorf("unknown attribute %q on model %s", name, r.meta.UID)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("update on model %s has no attributes", r.meta.UID)
	}

	// copy to avoid mutating the caller's map
	record := make(map[string]interface{}, len(data))
	for k, v := range data {
		record[k] = v
	}

	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeUpdate,
		Data:   record,
		State:  state,
	}); err != nil {
		return nil, err
	}

	d := r.conn.Dialect()
	var sets []string
	var values []interface{}
	for _, col := range r.meta.Columns {
		v, present := record[col.Name]
		if !present {
			continue
		}
		values = append(values, v)
		sets = append(sets, fmt.Sprintf("%s = %s",
			d.QuoteIdentifier(col.Column), d.Placeholder(len(values))))
	}

	values = append(values, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		r.conn.Table(r.meta.TableName),
		strings.Join(sets, ", "),
		d.QuoteIdentifier(idCol),
		d.Placeholder(len(values)))

	q := transaction.ResolveQuerier(ctx, r.conn.Conn())
	res, err := q.ExecContext(ctx, stmt, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", ConvertDBError(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}

	updated, err := query.NewBuilder(r.meta, r.conn).Where(query.Eq("id", id)).GetOne(ctx)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterUpdate,
		Data:   record,
		Result: updated,
		State:  state,
	}); err != nil {
		return nil, err
	}

	return updated, nil
}
