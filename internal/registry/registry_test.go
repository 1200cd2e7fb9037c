package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/internal/cache"
	"github.com/leapstack-labs/askdb/internal/schema"
)

func testSchema() *schema.Database {
	return &schema.Database{
		Server: "db01",
		Name:   "football",
		Tables: []*schema.Table{
			{
				Schema: "dbo",
				Name:   "Club",
				Columns: []*schema.Column{
					{Name: "ClubId", DataType: "int", PrimaryKey: true},
					{Name: "Name", DataType: "nvarchar(100)", Summary: "Official club name."},
					{Name: "StadiumId", DataType: "int", Nullable: true, ForeignKey: true},
				},
				PrimaryKey: []string{"ClubId"},
				ForeignKeys: []*schema.ForeignKey{{
					Name:        "FK_Club_Stadium",
					FromSchema:  "dbo",
					FromTable:   "Club",
					FromColumns: []string{"StadiumId"},
					ToSchema:    "dbo",
					ToTable:     "Stadium",
					ToColumns:   []string{"StadiumId"},
				}},
				Summary: "All clubs taking part in a competition.",
			},
			{
				Schema: "dbo",
				Name:   "Stadium",
				Columns: []*schema.Column{
					{Name: "StadiumId", DataType: "int", PrimaryKey: true},
				},
				PrimaryKey: []string{"StadiumId"},
			},
		},
		Synonyms: map[string]string{"team": "Club"},
	}
}

// failBuild reports a test failure if the registry falls back to building.
func failBuild(t *testing.T) BuildFunc {
	return func(context.Context) (*schema.Database, error) {
		t.Fatal("build must not run when the cache is valid")
		return nil, nil
	}
}

func countingBuild(db *schema.Database, calls *int) BuildFunc {
	return func(context.Context) (*schema.Database, error) {
		*calls++
		return db, nil
	}
}

func TestLoadOrBuildRoundTrip(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()
	want := testSchema()

	first := New(store, "schema.json", nil)
	require.NoError(t, first.Save(ctx, want))

	// A fresh registry must load the full model back without rebuilding.
	second := New(store, "schema.json", nil)
	got, err := second.LoadOrBuild(ctx, failBuild(t))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadOrBuildCacheMiss(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	calls := 0
	reg := New(store, "schema.json", nil)
	got, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "football", got.Name)

	// The build result was persisted: a fresh registry loads without building.
	fresh := New(store, "schema.json", nil)
	_, err = fresh.LoadOrBuild(ctx, failBuild(t))
	require.NoError(t, err)
}

func TestLoadOrBuildCorruptCache(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "schema.json", []byte("{not json")))

	calls := 0
	reg := New(store, "schema.json", nil)
	got, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "football", got.Name)
}

func TestLoadOrBuildInvalidCachedModel(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	// Well-formed JSON whose primary key names a column that does not exist.
	bad := []byte(`{"name":"football","tables":[{"schema":"dbo","name":"Club","columns":[{"name":"ClubId","data_type":"int"}],"primary_key":["Missing"]}]}`)
	require.NoError(t, store.Save(ctx, "schema.json", bad))

	calls := 0
	reg := New(store, "schema.json", nil)
	_, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoadOrBuildUnreadableStore(t *testing.T) {
	ctx := context.Background()

	calls := 0
	reg := New(&failingStore{}, "schema.json", nil)
	got, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "football", got.Name)
}

func TestLoadOrBuildBuildError(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())

	reg := New(store, "schema.json", nil)
	_, err := reg.LoadOrBuild(context.Background(), func(context.Context) (*schema.Database, error) {
		return nil, fmt.Errorf("introspection refused")
	})
	assert.ErrorContains(t, err, "failed to build schema")
	assert.Nil(t, reg.Active())
}

func TestEnsureBuildsOnce(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	calls := 0
	reg := New(store, "schema.json", nil)
	build := countingBuild(testSchema(), &calls)

	_, err := reg.Ensure(ctx, build)
	require.NoError(t, err)
	_, err = reg.Ensure(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetTable(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	reg := New(store, "schema.json", nil)

	// No snapshot yet.
	_, ok := reg.GetTable("Club")
	assert.False(t, ok)

	_, err := reg.LoadOrBuild(context.Background(), countingBuild(testSchema(), new(int)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		found bool
	}{
		{"Club", true},
		{"club", true},
		{"dbo.Club", true},
		{"DBO.CLUB", true},
		{"Stadium", true},
		{"dbo.Referee", false},
		{"Referee", false},
	}
	for _, tt := range tests {
		tbl, ok := reg.GetTable(tt.name)
		assert.Equal(t, tt.found, ok, "lookup %q", tt.name)
		if tt.found {
			require.NotNil(t, tbl)
		}
	}
}

func TestRebuildReplacesSnapshot(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	reg := New(store, "schema.json", nil)
	_, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), new(int)))
	require.NoError(t, err)

	next := &schema.Database{
		Name: "football",
		Tables: []*schema.Table{
			{Schema: "dbo", Name: "Season", Columns: []*schema.Column{{Name: "SeasonId", DataType: "int"}}},
		},
	}
	_, err = reg.Rebuild(ctx, countingBuild(next, new(int)))
	require.NoError(t, err)

	_, ok := reg.GetTable("Season")
	assert.True(t, ok)
	_, ok = reg.GetTable("Club")
	assert.False(t, ok)
}

func TestReload(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	reg := New(store, "schema.json", nil)
	_, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), new(int)))
	require.NoError(t, err)

	// Another process rewrites the artifact.
	next := New(store, "schema.json", nil)
	require.NoError(t, next.Save(ctx, &schema.Database{
		Name: "football",
		Tables: []*schema.Table{
			{Schema: "dbo", Name: "Season", Columns: []*schema.Column{{Name: "SeasonId", DataType: "int"}}},
		},
	}))

	require.NoError(t, reg.Reload(ctx))
	_, ok := reg.GetTable("Season")
	assert.True(t, ok)
}

func TestReloadKeepsSnapshotOnCorruptArtifact(t *testing.T) {
	store := cache.NewFileStore(t.TempDir())
	ctx := context.Background()

	reg := New(store, "schema.json", nil)
	_, err := reg.LoadOrBuild(ctx, countingBuild(testSchema(), new(int)))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "schema.json", []byte("{broken")))
	assert.Error(t, reg.Reload(ctx))

	// The previous snapshot stays active.
	_, ok := reg.GetTable("Club")
	assert.True(t, ok)
}

type failingStore struct{}

func (f *failingStore) Load(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("disk on fire")
}

func (f *failingStore) Save(context.Context, string, []byte) error {
	return fmt.Errorf("disk on fire")
}
