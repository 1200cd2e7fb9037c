// Package config provides configuration management for the askdb CLI.
//
// Configuration merges four layers with koanf, lowest to highest precedence:
// built-in defaults, askdb.yaml / askdb.yml, ASKDB_* environment variables,
// and command-line flags. The shared database settings live in
// internal/config and are re-exported here via a type alias.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/llm"
	"github.com/leapstack-labs/askdb/internal/translate"
)

// DatabaseConfig is an alias for the shared database configuration.
// This allows CLI code to use config.DatabaseConfig without importing
// internal/config.
type DatabaseConfig = intconfig.DatabaseConfig

// Config holds all CLI configuration options.
type Config struct {
	Database        DatabaseConfig  `koanf:"database"`
	LLM             LLMConfig       `koanf:"llm"`
	Translate       TranslateConfig `koanf:"translate"`
	Cache           CacheConfig     `koanf:"cache"`
	Server          ServerConfig    `koanf:"server"`
	AnnotationsPath string          `koanf:"annotations_path"`
	HistoryPath     string          `koanf:"history_path"`
	Verbose         bool            `koanf:"verbose"`
	OutputFormat    string          `koanf:"output"`
}

// LLMConfig locates the chat completion endpoint used for translation.
type LLMConfig struct {
	BaseURL        string  `koanf:"base_url"`
	APIKey         string  `koanf:"api_key"`
	Model          string  `koanf:"model"`
	Temperature    float64 `koanf:"temperature"`
	MaxTokens      int     `koanf:"max_tokens"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
	MaxRetries     int     `koanf:"max_retries"`
}

// ClientConfig converts the CLI settings to the LLM client's config.
func (c LLMConfig) ClientConfig() llm.Config {
	return llm.Config{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRetries:  c.MaxRetries,
	}
}

// TranslateConfig tunes the question-to-SQL pipeline.
type TranslateConfig struct {
	MaxTables   int `koanf:"max_tables"`
	MaxColumns  int `koanf:"max_columns"`
	TokenBudget int `koanf:"token_budget"`
	RowLimit    int `koanf:"row_limit"`
}

// Options converts the CLI settings to translator options for the given
// SQL dialect.
func (c TranslateConfig) Options(dialect string) translate.Options {
	return translate.Options{
		MaxTables:   c.MaxTables,
		MaxColumns:  c.MaxColumns,
		Dialect:     dialect,
		TokenBudget: c.TokenBudget,
		RowLimit:    c.RowLimit,
	}
}

// CacheConfig selects where schema snapshots are persisted. When S3 is set
// the object store is used instead of the local directory.
type CacheConfig struct {
	Dir string         `koanf:"dir"`
	S3  *S3CacheConfig `koanf:"s3"`
}

// S3CacheConfig locates an S3-compatible bucket for schema snapshots.
type S3CacheConfig struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Prefix    string `koanf:"prefix"`
}

// ServerConfig holds settings for HTTP serve mode.
type ServerConfig struct {
	Addr           string `koanf:"addr"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// Default configuration values.
const (
	DefaultCacheDir    = ".askdb"
	DefaultHistoryFile = ".askdb/history.db"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultServerAddr  = ":8765"
)
