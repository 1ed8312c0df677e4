// Package query translates the abstract filter shape used by repositories
// (field equality, containment, pagination) into dialect-specific SQL, and
// exposes a fluent builder as the lower-level escape hatch.
package query

import (
	"fmt"
	"strings"
)

// Op is a filter comparison operator
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpContains
	OpIsNull
	OpIsNotNull
)

// String returns the SQL form of the operator
func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpContains:
		return "CONTAINS"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// Condition is one filter predicate over an attribute. Conditions are plain
// values: building and rendering them has no side effects, so identical
// filters can be rendered and retried any number of times.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq matches rows whose field equals v
func Eq(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: v}
}

// Ne matches rows whose field does not equal v
func Ne(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpNe, Value: v}
}

// Lt matches rows whose field is less than v
func Lt(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpLt, Value: v}
}

// Lte matches rows whose field is at most v
func Lte(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpLte, Value: v}
}

// Gt matches rows whose field is greater than v
func Gt(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpGt, Value: v}
}

// Gte matches rows whose field is at least v
func Gte(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpGte, Value: v}
}

// In matches rows whose field is one of values
func In(field string, values ...interface{}) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// NotIn matches rows whose field is none of values
func NotIn(field string, values ...interface{}) Condition {
	return Condition{Field: field, Op: OpNotIn, Value: values}
}

// Contains matches rows whose field contains substr, using the dialect's
// substring-match operator
func Contains(field, substr string) Condition {
	return Condition{Field: field, Op: OpContains, Value: substr}
}

// IsNull matches rows whose field is NULL
func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull}
}

// IsNotNull matches rows whose field is not NULL
func IsNotNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNotNull}
}

// Order is one ORDER BY term
type Order struct {
	Field string
	Desc  bool
}

// escapeLike escapes LIKE wildcards in a user-supplied substring so a
// contains filter matches the literal text
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// asSlice normalizes an In/NotIn value to a slice of arguments
func asSlice(v interface{}) ([]interface{}, error) {
	values, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("IN filter requires a slice of values, got %T", v)
	}
	return values, nil
}
