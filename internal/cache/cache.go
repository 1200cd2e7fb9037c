// Package cache provides durable key-value stores for schema snapshot
// artifacts: a local file store and an S3-compatible object store.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound reports that a key has no stored value.
var ErrNotFound = errors.New("cache: key not found")

// Store persists opaque artifacts under string keys. A missing key is
// reported as ErrNotFound so callers can fall back to rebuilding.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
