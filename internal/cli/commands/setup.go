package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/askdb/internal/cache"
	"github.com/leapstack-labs/askdb/internal/cli/config"
	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/llm"
	"github.com/leapstack-labs/askdb/internal/registry"
	"github.com/leapstack-labs/askdb/internal/schema"
	"github.com/leapstack-labs/askdb/internal/translate"
	"github.com/leapstack-labs/askdb/pkg/metadata"
	"github.com/spf13/cobra"
)

// schemaCacheKey names the snapshot artifact inside the cache store.
const schemaCacheKey = "schema.json"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer

	// Provider, Registry, and Build are set by NewCommandContext and are
	// nil for contexts created without a database.
	Provider metadata.Provider
	Registry *registry.Registry
	Build    registry.BuildFunc
}

// NewCommandContext creates a CommandContext with a connected provider and
// a schema registry backed by the configured cache store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	c := NewCommandContextWithoutDB(cmd)

	if err := c.Cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	provider, err := connectProvider(cmd.Context(), c.Cfg, c.Logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := newCacheStore(c.Cfg)
	if err != nil {
		_ = provider.Close()
		return nil, nil, err
	}

	c.Provider = provider
	c.Registry = registry.New(store, schemaCacheKey, c.Logger)
	c.Build = newBuildFunc(provider, c.Cfg, c.Logger)

	cleanup := func() {
		_ = provider.Close()
	}

	return c, cleanup, nil
}

// NewCommandContextWithoutDB creates a CommandContext without connecting to
// a database. Useful for commands that don't need database access.
func NewCommandContextWithoutDB(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Translator builds the question-to-SQL pipeline. The LLM client is
// constructed here rather than in NewCommandContext so schema-only commands
// work without an API key.
func (c *CommandContext) Translator() (*translate.Translator, error) {
	if err := c.Cfg.RequireLLM(); err != nil {
		return nil, err
	}
	client, err := llm.New(c.Cfg.LLM.ClientConfig(), c.Logger)
	if err != nil {
		return nil, err
	}
	opts := c.Cfg.Translate.Options(c.Provider.Dialect())
	return translate.New(c.Registry, client, c.Build, opts, c.Logger), nil
}

// OpenHistory opens the question history store, creating its directory.
func (c *CommandContext) OpenHistory() (*history.Store, error) {
	dir := filepath.Dir(c.Cfg.HistoryPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return history.Open(c.Cfg.HistoryPath)
}

// SchemaCachePath returns the local snapshot path, or "" when the snapshot
// lives in S3 and cannot be watched.
func (c *CommandContext) SchemaCachePath() string {
	if c.Cfg.Cache.S3 != nil {
		return ""
	}
	return filepath.Join(c.Cfg.Cache.Dir, schemaCacheKey)
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	return &config.Config{
		Cache:        config.CacheConfig{Dir: getEnvOrDefault("ASKDB_CACHE__DIR", config.DefaultCacheDir)},
		HistoryPath:  getEnvOrDefault("ASKDB_HISTORY_PATH", config.DefaultHistoryFile),
		Server:       config.ServerConfig{Addr: config.DefaultServerAddr},
		Verbose:      os.Getenv("ASKDB_VERBOSE") == "true",
		OutputFormat: getEnvOrDefault("ASKDB_OUTPUT", config.DefaultOutput),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func connectProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metadata.Provider, error) {
	mcfg := cfg.Database.ToMetadataConfig()
	provider, err := metadata.NewProvider(mcfg, logger)
	if err != nil {
		return nil, err
	}
	if err := provider.Connect(ctx, mcfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", mcfg.Dialect, err)
	}
	return provider, nil
}

// newCacheStore selects the snapshot store: S3 when configured, otherwise
// the local cache directory.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	if s3 := cfg.Cache.S3; s3 != nil {
		return cache.NewS3Store(cache.S3Config{
			Endpoint:        s3.Endpoint,
			Region:          s3.Region,
			Bucket:          s3.Bucket,
			AccessKeyID:     s3.AccessKey,
			SecretAccessKey: s3.SecretKey,
			UseSSL:          s3.UseSSL,
			Prefix:          s3.Prefix,
		})
	}
	return cache.NewFileStore(cfg.Cache.Dir), nil
}

// newBuildFunc returns the introspection callback used for cache misses and
// explicit rebuilds. Annotations are re-read on every build so edits take
// effect without restarting.
func newBuildFunc(provider metadata.Provider, cfg *config.Config, logger *slog.Logger) registry.BuildFunc {
	return func(ctx context.Context) (*schema.Database, error) {
		ann, err := schema.LoadAnnotations(cfg.AnnotationsPath)
		if err != nil {
			return nil, err
		}
		return schema.Build(ctx, provider, schema.BuildOptions{
			Server:      cfg.Database.Host,
			Database:    databaseLabel(&cfg.Database),
			Annotations: ann,
			Logger:      logger,
		})
	}
}

// databaseLabel derives a snapshot label from the connection settings.
func databaseLabel(db *config.DatabaseConfig) string {
	if db.Name != "" {
		return db.Name
	}
	if db.Path != "" && db.Path != ":memory:" {
		base := filepath.Base(db.Path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return db.Dialect
}
