// Package registry owns the process-wide schema snapshot. It loads the
// snapshot from a cache store or builds it through a caller-supplied
// introspection callback, and swaps rebuilt snapshots in atomically so
// readers never observe a half-built schema.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/askdb/internal/cache"
	"github.com/leapstack-labs/askdb/internal/schema"
)

// BuildFunc produces a fresh schema snapshot by introspection.
type BuildFunc func(ctx context.Context) (*schema.Database, error)

// snapshot pairs a schema with its lookup indexes so both swap together.
type snapshot struct {
	db *schema.Database

	// byFull maps lowercased full names: "dbo.club" → *Table
	byFull map[string]*schema.Table

	// byName maps lowercased bare names: "club" → *Table
	// Note: if two schemas declare the same bare name, the last one wins
	byName map[string]*schema.Table
}

// Registry holds at most one active schema per process.
type Registry struct {
	store  cache.Store
	key    string
	logger *slog.Logger

	mu   sync.RWMutex
	snap *snapshot

	// buildMu serializes cache misses so concurrent callers trigger one build.
	buildMu sync.Mutex
}

func New(store cache.Store, key string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{store: store, key: key, logger: logger}
}

// Active returns the current snapshot, or nil before the first load.
func (r *Registry) Active() *schema.Database {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil
	}
	return r.snap.db
}

// Ensure returns the active schema, running LoadOrBuild on first use.
func (r *Registry) Ensure(ctx context.Context, build BuildFunc) (*schema.Database, error) {
	if db := r.Active(); db != nil {
		return db, nil
	}
	return r.LoadOrBuild(ctx, build)
}

// LoadOrBuild returns the cached snapshot when one deserializes cleanly,
// otherwise builds a fresh one, persists it, and installs it. A corrupt or
// unreadable cache artifact falls back to the build path instead of failing
// the load.
func (r *Registry) LoadOrBuild(ctx context.Context, build BuildFunc) (*schema.Database, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	if db := r.Active(); db != nil {
		return db, nil
	}

	data, err := r.store.Load(ctx, r.key)
	switch {
	case err == nil:
		db, derr := decode(data)
		if derr == nil {
			r.install(db)
			r.logger.Debug("schema loaded from cache", "key", r.key, "tables", len(db.Tables))
			return db, nil
		}
		r.logger.Warn("schema cache is corrupt, rebuilding", "key", r.key, "error", derr)
	case errors.Is(err, cache.ErrNotFound):
		r.logger.Debug("schema cache miss", "key", r.key)
	default:
		r.logger.Warn("schema cache is unreadable, rebuilding", "key", r.key, "error", err)
	}

	db, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	if err := r.Save(ctx, db); err != nil {
		// The built schema is still usable; a failed cache write only
		// costs the next startup a rebuild.
		r.logger.Warn("failed to persist schema cache", "key", r.key, "error", err)
	}
	r.install(db)
	return db, nil
}

// Rebuild forces a fresh build, persists it, and swaps it in.
func (r *Registry) Rebuild(ctx context.Context, build BuildFunc) (*schema.Database, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	db, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	if err := r.Save(ctx, db); err != nil {
		r.logger.Warn("failed to persist schema cache", "key", r.key, "error", err)
	}
	r.install(db)
	return db, nil
}

// Reload replaces the active snapshot from the cache store. Unlike
// LoadOrBuild there is no build fallback: on any error the active snapshot
// stays as it is.
func (r *Registry) Reload(ctx context.Context) error {
	data, err := r.store.Load(ctx, r.key)
	if err != nil {
		return fmt.Errorf("failed to load schema cache: %w", err)
	}
	db, err := decode(data)
	if err != nil {
		return err
	}
	r.install(db)
	return nil
}

// Save persists the snapshot unconditionally.
func (r *Registry) Save(ctx context.Context, db *schema.Database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := r.store.Save(ctx, r.key, data); err != nil {
		return fmt.Errorf("failed to save schema cache: %w", err)
	}
	return nil
}

// GetTable resolves a table by bare name or full "schema.table" name,
// case-insensitive. Returns false when absent or before the first load.
func (r *Registry) GetTable(name string) (*schema.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil, false
	}
	key := strings.ToLower(name)
	if t, ok := r.snap.byFull[key]; ok {
		return t, true
	}
	if t, ok := r.snap.byName[key]; ok {
		return t, true
	}
	return nil, false
}

func (r *Registry) install(db *schema.Database) {
	snap := &snapshot{
		db:     db,
		byFull: make(map[string]*schema.Table, len(db.Tables)),
		byName: make(map[string]*schema.Table, len(db.Tables)),
	}
	for _, t := range db.Tables {
		snap.byFull[strings.ToLower(t.FullName())] = t
		snap.byName[strings.ToLower(t.Name)] = t
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
}

func decode(data []byte) (*schema.Database, error) {
	var db schema.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to decode schema cache: %w", err)
	}
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema cache: %w", err)
	}
	return &db, nil
}
