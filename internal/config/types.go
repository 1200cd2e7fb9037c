// Package config provides shared configuration types for askdb.
// The package is decoupled from CLI concerns, so the HTTP service and other
// hosts can reuse the database settings without importing cobra or the
// koanf providers.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// DatabaseConfig holds the connection settings for the queried database.
type DatabaseConfig struct {
	// Dialect selects the metadata provider (mssql, postgres, mysql,
	// sqlite, duckdb).
	Dialect string `koanf:"dialect"`

	// DSN is a full connection string. When set it takes precedence over
	// the discrete fields below.
	DSN string `koanf:"dsn"`

	// Path is the database file for file-based engines. Use ":memory:"
	// for an in-memory database.
	Path string `koanf:"path"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Schema is the default namespace for unqualified table names.
	Schema string `koanf:"schema"`

	// Options holds driver-specific connection options.
	Options map[string]string `koanf:"options"`
}

// Validate checks that a metadata provider is registered for the configured
// dialect. The provider registry is the single source of truth for which
// dialects are available.
func (c *DatabaseConfig) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("database dialect is required")
	}

	dialect := strings.ToLower(c.Dialect)
	for _, name := range metadata.ListDialects() {
		if name == dialect {
			return nil
		}
	}
	return &metadata.UnknownDialectError{Dialect: c.Dialect, Available: metadata.ListDialects()}
}

// ToMetadataConfig converts to the provider connection config.
func (c *DatabaseConfig) ToMetadataConfig() metadata.Config {
	return metadata.Config{
		Dialect:  strings.ToLower(c.Dialect),
		DSN:      c.DSN,
		Path:     c.Path,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Name,
		Username: c.User,
		Password: c.Password,
		Schema:   c.Schema,
		Options:  c.Options,
	}
}
