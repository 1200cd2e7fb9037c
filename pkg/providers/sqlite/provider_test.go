package sqlite

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := New(nil)
	p.DB = db
	return p, mock
}

func TestPrimaryKeyOrder(t *testing.T) {
	p, mock := newMockProvider(t)

	// pk ordinals out of declaration order: composite key (year, comp)
	rows := sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
		AddRow(0, "comp", "INTEGER", 1, nil, 2).
		AddRow(1, "year", "INTEGER", 1, nil, 1).
		AddRow(2, "label", "TEXT", 0, nil, 0)
	mock.ExpectQuery("PRAGMA table_info").WillReturnRows(rows)

	pk, err := p.PrimaryKey(context.Background(), metadata.TableRef{Name: "season"})
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "comp"}, pk)
}

func TestForeignKeys(t *testing.T) {
	p, mock := newMockProvider(t)

	rows := sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}).
		AddRow(0, 0, "club", "home_club_id", "id", "NO ACTION", "NO ACTION", "NONE").
		AddRow(1, 0, "club", "away_club_id", "id", "NO ACTION", "NO ACTION", "NONE")
	mock.ExpectQuery("PRAGMA foreign_key_list").WillReturnRows(rows)

	fks, err := p.ForeignKeys(context.Background(), metadata.TableRef{Name: "match"})
	require.NoError(t, err)
	require.Len(t, fks, 2)
	assert.Equal(t, "fk_match_0", fks[0].ConstraintName)
	assert.Equal(t, []string{"home_club_id"}, fks[0].FromColumns)
	assert.Equal(t, "club", fks[0].ToTable)
	assert.Equal(t, []string{"id"}, fks[0].ToColumns)
	assert.Equal(t, "fk_match_1", fks[1].ConstraintName)
}

func TestListColumns(t *testing.T) {
	p, mock := newMockProvider(t)

	rows := sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
		AddRow(0, "id", "INTEGER", 1, nil, 1).
		AddRow(1, "name", "TEXT", 0, nil, 0)
	mock.ExpectQuery("PRAGMA table_info").WillReturnRows(rows)

	cols, err := p.ListColumns(context.Background(), metadata.TableRef{Name: "club"})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, 1, cols[0].Position)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
}
