package metadata

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Provider)
)

// Register adds a provider factory to the registry.
// Called by provider implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewProvider creates a provider instance for the configured dialect.
// The logger is passed to the provider constructor (nil uses a discard logger).
func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("database dialect not specified")
	}

	registryMu.RLock()
	factory, ok := registry[cfg.Dialect]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDialectError{
			Dialect:   cfg.Dialect,
			Available: ListDialects(),
		}
	}
	return factory(logger), nil
}

// ListDialects returns all registered dialect names (sorted).
func ListDialects() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDialectError is returned when an unknown dialect is requested.
type UnknownDialectError struct {
	Dialect   string
	Available []string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown database dialect %q\nAvailable dialects: %v\nHint: Check database.dialect in askdb.yaml", e.Dialect, e.Available)
}
