package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(metadata.Config{
		Host:     "db.example.com",
		Port:     5433,
		Database: "football",
		Username: "reader",
		Password: "secret",
	})
	assert.Equal(t, "host=db.example.com port=5433 dbname=football sslmode=disable user=reader password=secret", dsn)

	dsn = buildDSN(metadata.Config{
		Database: "football",
		Options:  map[string]string{"sslmode": "require"},
	})
	assert.Equal(t, "host=localhost port=5432 dbname=football sslmode=require", dsn)
}

func TestListColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	p := New(nil)
	p.DB = db

	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position", "comment"}).
		AddRow("id", "integer", "NO", 1, "").
		AddRow("name", "text", "YES", 2, "Club name")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "club").
		WillReturnRows(rows)

	cols, err := p.ListColumns(context.Background(), metadata.TableRef{Schema: "public", Name: "club"})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
	assert.Equal(t, "Club name", cols[1].Summary)
}

func TestApplyRowLimit(t *testing.T) {
	p := New(nil)

	assert.Equal(t, "SELECT id FROM club LIMIT 100", p.ApplyRowLimit("SELECT id FROM club", 100))
	assert.Equal(t, "SELECT id FROM club LIMIT 5", p.ApplyRowLimit("SELECT id FROM club LIMIT 5", 100))
}
