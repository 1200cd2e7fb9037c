package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/askdb/internal/config"
)

// DefaultSchemaForDialect returns the default schema for a database dialect.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForDialect(dialect string) string {
	return intconfig.DefaultSchemaForDialect(dialect)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "auto", "text", "markdown", "md", "json":
	default:
		return fmt.Errorf("invalid output format %q (valid: auto, text, markdown, json)", c.OutputFormat)
	}

	if c.Translate.MaxTables < 1 {
		return fmt.Errorf("translate.max_tables must be at least 1, got %d", c.Translate.MaxTables)
	}
	if c.Translate.MaxColumns < 1 {
		return fmt.Errorf("translate.max_columns must be at least 1, got %d", c.Translate.MaxColumns)
	}
	if c.Translate.RowLimit < 0 {
		return fmt.Errorf("translate.row_limit must not be negative, got %d", c.Translate.RowLimit)
	}

	return nil
}

// RequireDatabase checks that a database connection is configured.
// Commands that talk to the database call this before connecting.
func (c *Config) RequireDatabase() error {
	if c.Database.Dialect == "" {
		return fmt.Errorf("no database configured\nHint: Set database.dialect in askdb.yaml or run askdb with --config")
	}
	return nil
}

// RequireLLM checks that the translation endpoint is configured.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("no LLM API key configured\nHint: Set llm.api_key in askdb.yaml or export ASKDB_LLM__API_KEY")
	}
	return nil
}
