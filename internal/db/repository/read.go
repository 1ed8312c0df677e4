package repository

import (
	"context"

	"github.com/centogram/strapi/internal/db/lifecycle"
)

// FindMany returns all records matching the params
func (r *Repository) FindMany(ctx context.Context, params Params) ([]map[string]interface{}, error) {
	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeFindMany,
		State:  state,
	}); err != nil {
		return nil, err
	}

	results, err := r.builder(params).GetMany(ctx)
	if err != nil {
		return nil, ConvertDBError(err)
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterFindMany,
		Result: results,
		State:  state,
	}); err != nil {
		return nil, err
	}

	return results, nil
}

// FindOne returns the first record matching the params, or ErrNotFound
func (r *Repository) FindOne(ctx context.Context, params Params) (map[string]interface{}, error) {
	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeFindOne,
		State:  state,
	}); err != nil {
		return nil, err
	}

	record, err := r.builder(params).GetOne(ctx)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	if record == nil {
		return nil, ErrNotFound
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterFindOne,
		Result: record,
		State:  state,
	}); err != nil {
		return nil, err
	}

	return record, nil
}

// Count returns the number of records matching the params' filters
func (r *Repository) Count(ctx context.Context, params Params) (int, error) {
	state := map[string]interface{}{}
	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.BeforeCount,
		State:  state,
	}); err != nil {
		return 0, err
	}

	count, err := r.builder(params).Count(ctx)
	if err != nil {
		return 0, ConvertDBError(err)
	}

	if err := r.publish(ctx, &lifecycle.Event{
		UID:    r.meta.UID,
		Action: lifecycle.AfterCount,
		Result: count,
		State:  state,
	}); err != nil {
		return 0, err
	}

	return count, nil
}
