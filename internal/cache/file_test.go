package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, "schema.json", []byte(`{"name":"football"}`))
	require.NoError(t, err)

	data, err := store.Load(ctx, "schema.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"football"}`, string(data))
}

func TestFileStoreMissingKey(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Load(context.Background(), "absent.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreNestedKey(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	ctx := context.Background()

	err := store.Save(ctx, "schema/db01/football.json", []byte("{}"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "schema", "db01", "football.json"))
	require.NoError(t, err)

	data, err := store.Load(ctx, "schema/db01/football.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestFileStoreOverwrite(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "schema.json", []byte("old")))
	require.NoError(t, store.Save(ctx, "schema.json", []byte("new")))

	data, err := store.Load(ctx, "schema.json")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
