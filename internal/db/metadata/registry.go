package metadata

import (
	"sort"
	"strings"
)

// Registry provides O(1) lookup of compiled metadata entries by model UID.
// Read-only after construction.
type Registry struct {
	entries map[string]*Metadata
}

// NewRegistry compiles and validates the supplied model definitions. Every
// relation target must resolve to a registered UID and every attribute must
// declare a supported type; violations fail construction with a SchemaError.
func NewRegistry(models map[string]ModelDefinition) (*Registry, error) {
	entries := make(map[string]*Metadata, len(models))

	for uid, def := range models {
		entry, err := compile(uid, def)
		if err != nil {
			return nil, err
		}
		entries[uid] = entry
	}

	// Relation targets may forward-reference, so resolve them after all
	// entries exist.
	for uid, entry := range entries {
		for _, rel := range entry.Relations {
			if _, ok := entries[rel.Target]; !ok {
				return nil, &SchemaError{
					UID:       uid,
					Attribute: rel.Name,
					Message:   "relation target " + rel.Target + " is not registered",
				}
			}
		}
	}

	return &Registry{entries: entries}, nil
}

// Has reports whether a model UID is registered
func (r *Registry) Has(uid string) bool {
	_, ok := r.entries[uid]
	return ok
}

// Get returns the compiled metadata for a model UID, or an
// UnknownModelError when the UID is not registered
func (r *Registry) Get(uid string) (*Metadata, error) {
	entry, ok := r.entries[uid]
	if !ok {
		return nil, &UnknownModelError{UID: uid}
	}
	return entry, nil
}

// UIDs returns all registered model UIDs in sorted order
func (r *Registry) UIDs() []string {
	uids := make([]string, 0, len(r.entries))
	for uid := range r.entries {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// Len returns the number of registered entries
func (r *Registry) Len() int {
	return len(r.entries)
}

// compile builds one immutable metadata entry from its definition
func compile(uid string, def ModelDefinition) (*Metadata, error) {
	if len(def.Attributes) == 0 {
		return nil, &SchemaError{UID: uid, Message: "model has no attributes"}
	}

	entry := &Metadata{
		UID:       uid,
		TableName: def.TableName,
		columns:   make(map[string]*Column),
	}
	if entry.TableName == "" {
		entry.TableName = defaultTableName(uid)
	}

	names := make([]string, 0, len(def.Attributes))
	for name := range def.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		attr := def.Attributes[name]
		if !attr.Type.valid() {
			return nil, &SchemaError{UID: uid, Attribute: name, Message: "unsupported attribute type"}
		}

		if attr.Type == TypeRelation {
			if attr.Target == "" {
				return nil, &SchemaError{UID: uid, Attribute: name, Message: "relation has no target"}
			}
			entry.Relations = append(entry.Relations, &Relation{
				Name:   name,
				Target: attr.Target,
				Kind:   attr.Relation,
			})
			continue
		}

		col := &Column{
			Name:      name,
			Column:    attr.Column,
			Type:      attr.Type,
			Required:  attr.Required,
			Unique:    attr.Unique,
			Generated: attr.Generated,
			Default:   attr.Default,
		}
		if col.Column == "" {
			col.Column = name
		}
		entry.Columns = append(entry.Columns, col)
		entry.columns[name] = col
	}

	// id leads the column order; the rest stay alphabetical
	sort.SliceStable(entry.Columns, func(i, j int) bool {
		if entry.Columns[i].Name == "id" {
			return entry.Columns[j].Name != "id"
		}
		if entry.Columns[j].Name == "id" {
			return false
		}
		return entry.Columns[i].Name < entry.Columns[j].Name
	})

	return entry, nil
}

// defaultTableName derives a table name from a model UID, e.g.
// "api::article.article" becomes "api_article_article"
func defaultTableName(uid string) string {
	replacer := strings.NewReplacer("::", "_", ".", "_", "-", "_")
	return strings.ToLower(replacer.Replace(uid))
}
