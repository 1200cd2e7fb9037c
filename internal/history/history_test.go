package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestAppendFillsDefaults(t *testing.T) {
	s, _ := openTestStore(t)

	e := &Entry{Question: "list all clubs", SQL: "SELECT Name FROM Club", Outcome: OutcomeExecuted}
	require.NoError(t, s.Append(context.Background(), e))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestListNewestFirst(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	questions := []string{"first", "second", "third"}
	for i, q := range questions {
		require.NoError(t, s.Append(ctx, &Entry{
			Question:  q,
			Outcome:   OutcomeNoResult,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Question)
	assert.Equal(t, "second", entries[1].Question)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEntryRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	want := &Entry{
		Question:  "how many goals per season",
		SQL:       "SELECT s.Name, COUNT(g.GoalId) FROM Season s",
		Outcome:   OutcomeExecuted,
		RowCount:  12,
		Duration:  1500 * time.Millisecond,
		CreatedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Append(ctx, want))

	entries, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Question, got.Question)
	assert.Equal(t, want.SQL, got.SQL)
	assert.Equal(t, want.Outcome, got.Outcome)
	assert.Equal(t, want.RowCount, got.RowCount)
	assert.Equal(t, want.Duration, got.Duration)
	assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Second)
}

func TestRejectionKeepsReason(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, &Entry{
		Question: "drop the club table",
		SQL:      "DROP TABLE Club",
		Outcome:  OutcomeRejected,
		Reason:   "disallowed keyword: DROP",
	}))

	entries, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeRejected, entries[0].Outcome)
	assert.Equal(t, "disallowed keyword: DROP", entries[0].Reason)
}

func TestClear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, &Entry{Question: "q", Outcome: OutcomeNoResult}))
	}

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, &Entry{Question: "list all clubs", Outcome: OutcomeExecuted}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "list all clubs", entries[0].Question)
}
