package repository

import (
	"context"
	"fmt"

	"github.com/centogram/strapi/internal/db/lifecycle"
	"github.com/centogram/strapi/internal/db/query"
	"github.com/centogram/strapi/internal/db/transaction"
)

// Delete removes the record identified by id. Returns ErrNotFound when no
// such record exists.
func (r *Repository) Delete(ctx context.Context, id interface{}) error {
	idCol, err := r.idColumn()
	if err != nil {
		return err
	}

	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeDelete,
		Data:   map[string]interface{}{"id": id},
		State:  state,
	}); err != nil {
		return err
	}

	d := r.conn.Dialect()
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		r.conn.Table(r.meta.TableName),
		d.QuoteIdentifier(idCol),
		d.Placeholder(1))

	q := transaction.ResolveQuerier(ctx, r.conn.Conn())
	res, err := q.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", ConvertDBError(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	return r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterDelete,
		Data:   map[string]interface{}{"id": id},
		State:  state,
	})
}

// DeleteMany removes every record matching the filters and returns how many
// rows were deleted
func (r *Repository) DeleteMany(ctx context.Context, filters ...query.Condition) (int64, error) {
	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeDelete,
		State:  state,
	}); err != nil {
		return 0, err
	}

	stmt, args, err := query.NewBuilder(r.meta, r.conn).Where(filters...).DeleteSQL()
	if err != nil {
		return 0, err
	}

	q := transaction.ResolveQuerier(ctx, r.conn.Conn())
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", ConvertDBError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterDelete,
		Result: affected,
		State:  state,
	}); err != nil {
		return 0, err
	}
	return affected, nil
}
