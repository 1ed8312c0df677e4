package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/centogram/strapi/internal/db/connection"
	"github.com/centogram/strapi/internal/db/metadata"
	"github.com/centogram/strapi/internal/db/transaction"
)

// pqArrayThreshold is the IN-list size beyond which postgres queries switch
// to a single ANY(array) parameter
const pqArrayThreshold = 8

// Builder assembles and executes SELECT queries for one metadata entry.
// Rendering is side-effect free: the same builder state produces identical
// SQL on every call.
type Builder struct {
	meta *metadata.Metadata
	conn *connection.Manager

	selects []string
	conds   []Condition
	orderBy []Order
	limit   *int
	offset  *int
}

// NewBuilder creates a query builder for the given metadata entry
func NewBuilder(meta *metadata.Metadata, conn *connection.Manager) *Builder {
	return &Builder{meta: meta, conn: conn}
}

// Select restricts the projection to the given attribute names
func (b *Builder) Select(fields ...string) *Builder {
	b.selects = append(b.selects, fields...)
	return b
}

// Where appends filter conditions, combined with AND
func (b *Builder) Where(conds ...Condition) *Builder {
	b.conds = append(b.conds, conds...)
	return b
}

// OrderBy appends an ascending ORDER BY term
func (b *Builder) OrderBy(field string) *Builder {
	b.orderBy = append(b.orderBy, Order{Field: field})
	return b
}

// OrderByDesc appends a descending ORDER BY term
func (b *Builder) OrderByDesc(field string) *Builder {
	b.orderBy = append(b.orderBy, Order{Field: field, Desc: true})
	return b
}

// Limit caps the number of returned rows
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset skips the first n rows
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// column resolves an attribute name to its quoted column reference
func (b *Builder) column(field string) (string, error) {
	col, ok := b.meta.Column(field)
	if !ok {
		return "", fmt.Errorf("unknown attribute %q on model %s", field, b.meta.UID)
	}
	return b.conn.Dialect().QuoteIdentifier(col.Column), nil
}

// ToSQL renders the SELECT statement and its arguments
func (b *Builder) ToSQL() (string, []interface{}, error) {
	projection := "*"
	if len(b.selects) > 0 {
		cols := make([]string, len(b.selects))
		for i, field := range b.selects {
			quoted, err := b.column(field)
			if err != nil {
				return "", nil, err
			}
			cols[i] = quoted
		}
		projection = strings.Join(cols, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection)
	sb.WriteString(" FROM ")
	sb.WriteString(b.conn.Table(b.meta.TableName))

	args := make([]interface{}, 0, len(b.conds))
	where, err := b.whereSQL(&args)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if len(b.orderBy) > 0 {
		terms := make([]string, len(b.orderBy))
		for i, ord := range b.orderBy {
			quoted, err := b.column(ord.Field)
			if err != nil {
				return "", nil, err
			}
			terms[i] = quoted + " ASC"
			if ord.Desc {
				terms[i] = quoted + " DESC"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	if b.limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", *b.limit))
	}
	if b.offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", *b.offset))
	}

	return sb.String(), args, nil
}

// CountSQL renders the COUNT statement for the builder's filters
func (b *Builder) CountSQL() (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(b.conn.Table(b.meta.TableName))

	args := make([]interface{}, 0, len(b.conds))
	where, err := b.whereSQL(&args)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	return sb.String(), args, nil
}

// DeleteSQL renders the DELETE statement for the builder's filters
func (b *Builder) DeleteSQL() (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.conn.Table(b.meta.TableName))

	args := make([]interface{}, 0, len(b.conds))
	where, err := b.whereSQL(&args)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	return sb.String(), args, nil
}

// whereSQL renders the WHERE clause, appending arguments to args
func (b *Builder) whereSQL(args *[]interface{}) (string, error) {
	if len(b.conds) == 0 {
		return "", nil
	}

	d := b.conn.Dialect()
	parts := make([]string, 0, len(b.conds))

	for _, cond := range b.conds {
		quoted, err := b.column(cond.Field)
		if err != nil {
			return "", err
		}

		switch cond.Op {
		case OpIsNull, OpIsNotNull:
			parts = append(parts, quoted+" "+cond.Op.String())

		case OpContains:
			substr, ok := cond.Value.(string)
			if !ok {
				return "", fmt.Errorf("contains filter on %q requires a string, got %T", cond.Field, cond.Value)
			}
			*args = append(*args, "%"+escapeLike(substr)+"%")
			parts = append(parts, fmt.Sprintf("%s %s %s ESCAPE '\\'",
				quoted, d.ContainsOperator(), d.Placeholder(len(*args))))

		case OpIn, OpNotIn:
			values, err := asSlice(cond.Value)
			if err != nil {
				return "", fmt.Errorf("filter on %q: %w", cond.Field, err)
			}
			if len(values) == 0 {
				// empty IN matches nothing, empty NOT IN matches everything
				if cond.Op == OpIn {
					parts = append(parts, "1 = 0")
				}
				continue
			}

			// large postgres lists collapse into one array parameter
			if d.Name() == "postgres" && len(values) >= pqArrayThreshold {
				*args = append(*args, pq.Array(values))
				expr := fmt.Sprintf("%s = ANY(%s)", quoted, d.Placeholder(len(*args)))
				if cond.Op == OpNotIn {
					expr = fmt.Sprintf("%s <> ALL(%s)", quoted, d.Placeholder(len(*args)))
				}
				parts = append(parts, expr)
				continue
			}

			placeholders := make([]string, len(values))
			for i, v := range values {
				*args = append(*args, v)
				placeholders[i] = d.Placeholder(len(*args))
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)",
				quoted, cond.Op.String(), strings.Join(placeholders, ", ")))

		default:
			*args = append(*args, cond.Value)
			parts = append(parts, fmt.Sprintf("%s %s %s",
				quoted, cond.Op.String(), d.Placeholder(len(*args))))
		}
	}

	return strings.Join(parts, " AND "), nil
}

// GetMany executes the query and returns the matching records. It joins the
// ambient transaction when the context carries one.
func (b *Builder) GetMany(ctx context.Context) ([]map[string]interface{}, error) {
	sqlText, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}

	q := transaction.ResolveQuerier(ctx, b.conn.Conn())
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// GetOne executes the query limited to a single record. Returns nil when no
// row matches.
func (b *Builder) GetOne(ctx context.Context) (map[string]interface{}, error) {
	results, err := b.Limit(1).GetMany(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Count executes the COUNT form of the query
func (b *Builder) Count(ctx context.Context) (int, error) {
	sqlText, args, err := b.CountSQL()
	if err != nil {
		return 0, err
	}

	q := transaction.ResolveQuerier(ctx, b.conn.Conn())
	var count int
	if err := q.QueryRowContext(ctx, sqlText, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// scanRows scans all rows into record maps keyed by column name
func scanRows(rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(values[i])
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeValue converts driver byte slices to strings so records compare
// cleanly across dialects
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
