package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/prompt"
	"github.com/leapstack-labs/askdb/internal/translate"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// findConfigFile finds the config file to use.
// Priority: explicit path > askdb.yaml > askdb.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("askdb.yaml"); err == nil {
		return "askdb.yaml"
	}
	if _, err := os.Stat("askdb.yml"); err == nil {
		return "askdb.yml"
	}
	return ""
}

// configExistsIn checks if an askdb config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"askdb.yaml", "askdb.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for an askdb config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from the filesystem.
// Priority:
//  1. Directory of the explicit --config file
//  2. Search upward from CWD for askdb.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	// 1. Explicit config file anchors the project root
	if cfgFile != "" {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(absPath)
		}
	}

	// 2. Search upward from CWD for askdb.yaml
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	// 3. Default to CWD
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Project root anchors all relative path resolution
	projectRoot := inferProjectRoot(cfgFile)

	// Track paths that were explicitly provided as flags (already relative to CWD).
	// These will be converted to absolute paths before the normal resolution step,
	// to prevent double-resolution against an inferred project root.
	var flagCacheDir, flagHistory, flagAnnotations string
	if flags != nil {
		if flags.Changed("cache-dir") {
			if v, _ := flags.GetString("cache-dir"); v != "" {
				flagCacheDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("history") {
			if v, _ := flags.GetString("history"); v != "" {
				flagHistory, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("annotations") {
			if v, _ := flags.GetString("annotations"); v != "" {
				flagAnnotations, _ = filepath.Abs(v)
			}
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"llm.base_url":           "https://api.openai.com",
		"llm.model":              "gpt-4o-mini",
		"llm.timeout_seconds":    30,
		"llm.max_retries":        3,
		"translate.max_tables":   translate.DefaultMaxTables,
		"translate.max_columns":  translate.DefaultMaxColumns,
		"translate.token_budget": prompt.DefaultTokenBudget,
		"translate.row_limit":    prompt.DefaultRowLimit,
		"cache.dir":              DefaultCacheDir,
		"history_path":           DefaultHistoryFile,
		"server.addr":            DefaultServerAddr,
		"server.timeout_seconds": 30,
		"verbose":                false,
		"output":                 DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	// Search in project root if no explicit config file provided
	if cfgFile == "" {
		for _, name := range []string{"askdb.yaml", "askdb.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (ASKDB_ prefix)
	// Double underscore separates nesting levels so leaf names keep their
	// single underscores: ASKDB_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider("ASKDB_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "ASKDB_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// EXPLICIT MAPPING: short flag names bridge to nested config keys
			switch key {
			case "cache_dir":
				return "cache.dir", posflag.FlagVal(flags, f)
			case "history":
				return "history_path", posflag.FlagVal(flags, f)
			case "annotations":
				return "annotations_path", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct. Env values arrive as strings, so the
	// decoder needs weak typing to fill int and bool fields from them.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the project root.
	// Flag-provided paths were already made absolute relative to CWD.
	if flagCacheDir != "" {
		cfg.Cache.Dir = flagCacheDir
	} else {
		cfg.Cache.Dir = resolvePathRelativeTo(cfg.Cache.Dir, projectRoot)
	}
	if flagHistory != "" {
		cfg.HistoryPath = flagHistory
	} else {
		cfg.HistoryPath = resolvePathRelativeTo(cfg.HistoryPath, projectRoot)
	}
	if flagAnnotations != "" {
		cfg.AnnotationsPath = flagAnnotations
	} else {
		cfg.AnnotationsPath = resolvePathRelativeTo(cfg.AnnotationsPath, projectRoot)
	}
	// Database path can be :memory: or a file path
	if cfg.Database.Path != "" && cfg.Database.Path != ":memory:" {
		cfg.Database.Path = resolvePathRelativeTo(cfg.Database.Path, projectRoot)
	}

	// Expand environment variables in sensitive fields
	expandConfigEnvVars(&cfg)

	// Apply defaults based on database dialect
	intconfig.ApplyDialectDefaults(&cfg.Database)

	// Validate database configuration when one is declared. Commands that
	// need no database still work without a dialect.
	if cfg.Database.Dialect != "" {
		if err := cfg.Database.Validate(); err != nil {
			return nil, fmt.Errorf("invalid database configuration: %w", err)
		}
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	// Match ${VAR} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandConfigEnvVars expands environment variables in sensitive fields.
func expandConfigEnvVars(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Database.Password = expandEnvVars(cfg.Database.Password)
	cfg.Database.User = expandEnvVars(cfg.Database.User)
	cfg.Database.Host = expandEnvVars(cfg.Database.Host)
	cfg.Database.DSN = expandEnvVars(cfg.Database.DSN)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	if cfg.Cache.S3 != nil {
		cfg.Cache.S3.AccessKey = expandEnvVars(cfg.Cache.S3.AccessKey)
		cfg.Cache.S3.SecretKey = expandEnvVars(cfg.Cache.S3.SecretKey)
	}
}
