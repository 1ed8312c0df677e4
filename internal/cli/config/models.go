package config

import (
	"fmt"

	"github.com/centogram/strapi/internal/db/metadata"
)

// ModelConfig is the file form of one model definition
type ModelConfig struct {
	TableName  string                     `mapstructure:"table_name"`
	Attributes map[string]AttributeConfig `mapstructure:"attributes"`
}

// AttributeConfig is the file form of one attribute
type AttributeConfig struct {
	Type      string      `mapstructure:"type"`
	Column    string      `mapstructure:"column"`
	Required  bool        `mapstructure:"required"`
	Unique    bool        `mapstructure:"unique"`
	Default   interface{} `mapstructure:"default"`
	Generated bool        `mapstructure:"generated"`
	Target    string      `mapstructure:"target"`
	Relation  string      `mapstructure:"relation"`
}

// ModelDefinitions converts the configured models into registry input
func (c *Config) ModelDefinitions() (map[string]metadata.ModelDefinition, error) {
	defs := make(map[string]metadata.ModelDefinition, len(c.Models))
	for uid, model := range c.Models {
		attrs := make(map[string]metadata.Attribute, len(model.Attributes))
		for name, attr := range model.Attributes {
			t, err := metadata.ParseType(attr.Type)
			if err != nil {
				return nil, fmt.Errorf("model %s, attribute %s: %w", uid, name, err)
			}

			converted := metadata.Attribute{
				Type:      t,
				Column:    attr.Column,
				Required:  attr.Required,
				Unique:    attr.Unique,
				Default:   attr.Default,
				Generated: attr.Generated,
				Target:    attr.Target,
			}
			if attr.Relation != "" {
				kind, err := metadata.ParseRelationKind(attr.Relation)
				if err != nil {
					return nil, fmt.Errorf("model %s, attribute %s: %w", uid, name, err)
				}
				converted.Relation = kind
			}
			attrs[name] = converted
		}
		defs[uid] = metadata.ModelDefinition{TableName: model.TableName, Attributes: attrs}
	}
	return defs, nil
}
