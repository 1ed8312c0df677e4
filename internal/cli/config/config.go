// Package config loads the CLI configuration from strapi.yml and the
// environment
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the tool configuration
type Config struct {
	Database DatabaseConfig         `mapstructure:"database"`
	Models   map[string]ModelConfig `mapstructure:"models"`
}

// DatabaseConfig holds the connection settings
type DatabaseConfig struct {
	Client         string     `mapstructure:"client"`
	URL            string     `mapstructure:"url"`
	Schema         string     `mapstructure:"schema"`
	Pool           PoolConfig `mapstructure:"pool"`
	ForceMigration bool       `mapstructure:"force_migration"`
}

// PoolConfig holds the connection pool settings
type PoolConfig struct {
	MaxOpen int `mapstructure:"max_open"`
	MaxIdle int `mapstructure:"max_idle"`
}

// Load reads strapi.yml (or strapi.yaml) from the working directory,
// falling back to defaults when no file exists. DATABASE_URL in the
// environment always wins over the configured URL.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("database.client", "postgres")
	v.SetDefault("database.force_migration", true)

	v.SetConfigName("strapi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("no database URL configured (set database.url in strapi.yml or the DATABASE_URL environment variable)")
	}
	return &cfg, nil
}
