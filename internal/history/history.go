// Package history persists the question log: every question asked, the SQL
// it produced, how it ended, and what it cost. The log lives in a local
// SQLite database next to the cache so it survives restarts.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

// Outcome labels for an Entry.
const (
	OutcomeExecuted = "executed"
	OutcomeRejected = "rejected"
	OutcomeNoResult = "no_result"
	OutcomeError    = "error"
)

// Entry is one recorded question.
type Entry struct {
	ID        string
	Question  string
	SQL       string
	Outcome   string
	Reason    string
	RowCount  int64
	Duration  time.Duration
	CreatedAt time.Time
}

// Store records entries in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the history database, creating and migrating it as needed.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run history migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one entry, filling ID and CreatedAt when unset.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, question, sql_text, outcome, reason, row_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Question, e.SQL, e.Outcome, e.Reason, e.RowCount, e.Duration.Milliseconds(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// List returns entries newest first. A limit below one means no cap.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit < 1 {
		// SQLite treats a negative LIMIT as unlimited.
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, sql_text, outcome, reason, row_count, duration_ms, created_at
		 FROM history ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Question, &e.SQL, &e.Outcome, &e.Reason, &e.RowCount, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes all entries and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared entries: %w", err)
	}
	return n, nil
}
