// Package metadata compiles caller-supplied model definitions into the
// immutable, in-memory schema representation consulted by every repository
// operation. Entries are validated once at construction and never mutated
// for the process lifetime.
package metadata

import "fmt"

// AttributeType represents the supported attribute types
type AttributeType int

const (
	// TypeString is a short text column
	TypeString AttributeType = iota
	// TypeText is an unbounded text column
	TypeText
	// TypeInteger is a 32-bit integer column
	TypeInteger
	// TypeBigInteger is a 64-bit integer column
	TypeBigInteger
	// TypeFloat is a double-precision column
	TypeFloat
	// TypeDecimal is an exact numeric column
	TypeDecimal
	// TypeBoolean is a boolean column
	TypeBoolean
	// TypeDatetime is a timestamp column
	TypeDatetime
	// TypeDate is a date column
	TypeDate
	// TypeJSON is a JSON document column
	TypeJSON
	// TypeUUID is a UUID column
	TypeUUID
	// TypeRelation marks an attribute as a relation to another model
	TypeRelation
)

// String returns the string representation of the attribute type
func (t AttributeType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeBigInteger:
		return "biginteger"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBoolean:
		return "boolean"
	case TypeDatetime:
		return "datetime"
	case TypeDate:
		return "date"
	case TypeJSON:
		return "json"
	case TypeUUID:
		return "uuid"
	case TypeRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// valid reports whether the type is one of the supported attribute types
func (t AttributeType) valid() bool {
	return t >= TypeString && t <= TypeRelation
}

// ParseType resolves the string form of an attribute type, as used in
// configuration files
func ParseType(s string) (AttributeType, error) {
	for t := TypeString; t <= TypeRelation; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// RelationKind represents the cardinality of a relation
type RelationKind int

const (
	// OneToOne relates a single row to a single target row
	OneToOne RelationKind = iota
	// OneToMany relates a single row to many target rows
	OneToMany
	// ManyToOne relates many rows to a single target row
	ManyToOne
	// ManyToMany relates many rows to many target rows
	ManyToMany
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "oneToOne"
	case OneToMany:
		return "oneToMany"
	case ManyToOne:
		return "manyToOne"
	case ManyToMany:
		return "manyToMany"
	default:
		return "unknown"
	}
}

// ParseRelationKind resolves the string form of a relation kind
func ParseRelationKind(s string) (RelationKind, error) {
	for k := OneToOne; k <= ManyToMany; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// Attribute is one attribute of a caller-supplied model definition
type Attribute struct {
	Type      AttributeType
	Column    string      // column name, defaults to the attribute name
	Required  bool        // NOT NULL
	Unique    bool        // UNIQUE constraint
	Default   interface{} // default value applied on create
	Generated bool        // value generated on create (uuid primary keys)

	// Relation options, consulted only when Type == TypeRelation
	Target   string // UID of the target model
	Relation RelationKind
}

// ModelDefinition is the structural descriptor supplied for one model UID
type ModelDefinition struct {
	TableName  string // defaults to a sanitized form of the UID
	Attributes map[string]Attribute
}

// Column is a compiled, typed column of a metadata entry
type Column struct {
	Name      string // attribute name
	Column    string // database column name
	Type      AttributeType
	Required  bool
	Unique    bool
	Generated bool
	Default   interface{}
}

// Relation is a compiled relation descriptor
type Relation struct {
	Name   string // attribute name holding the relation
	Target string // UID of the target entry
	Kind   RelationKind
}

// Metadata is the compiled entry for one model. Immutable after registry
// construction.
type Metadata struct {
	UID       string
	TableName string
	Columns   []*Column // ordered: id first, then alphabetical
	Relations []*Relation

	columns map[string]*Column
}

// Column returns the compiled column for an attribute name
func (m *Metadata) Column(name string) (*Column, bool) {
	col, ok := m.columns[name]
	return col, ok
}

// ColumnNames returns the database column names in the entry's column order
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Column
	}
	return names
}

// UnknownModelError is returned when an unregistered model UID is referenced
type UnknownModelError struct {
	UID string
}

// Error implements the error interface
func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.UID)
}

// SchemaError reports invalid or unsatisfiable metadata, such as a relation
// pointing at an unregistered target
type SchemaError struct {
	UID       string
	Attribute string
	Message   string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("invalid schema for %s.%s: %s", e.UID, e.Attribute, e.Message)
	}
	return fmt.Sprintf("invalid schema for %s: %s", e.UID, e.Message)
}
