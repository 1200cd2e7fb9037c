// Package sqlite provides a SQLite metadata provider.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite" // sqlite driver (pure Go)

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// Provider implements metadata.Provider for SQLite. SQLite has no schema
// namespaces, so TableRef.Schema is always empty, and no stored comments, so
// summaries are always empty.
type Provider struct {
	metadata.BaseProvider
}

// New creates a new SQLite provider instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		BaseProvider: metadata.BaseProvider{Logger: logger},
	}
}

func init() {
	metadata.Register("sqlite", func(logger *slog.Logger) metadata.Provider {
		return New(logger)
	})
}

// Dialect returns the provider's dialect name.
func (p *Provider) Dialect() string {
	return "sqlite"
}

// Connect opens the SQLite database file.
func (p *Provider) Connect(ctx context.Context, cfg metadata.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == "" {
		return fmt.Errorf("sqlite requires a database path")
	}

	p.Logger.Debug("opening sqlite database", slog.String("path", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// ListTables returns all user tables.
func (p *Provider) ListTables(ctx context.Context) ([]metadata.TableRef, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []metadata.TableRef
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, metadata.TableRef{Name: name})
	}
	return tables, rows.Err()
}

// ListColumns returns the table's columns via PRAGMA table_info.
func (p *Provider) ListColumns(ctx context.Context, table metadata.TableRef) ([]metadata.ColumnInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	rows, err := p.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []metadata.ColumnInfo
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		cols = append(cols, metadata.ColumnInfo{
			Name:     name,
			DataType: dataType,
			Nullable: notNull == 0,
			Position: cid + 1,
		})
	}
	return cols, rows.Err()
}

// PrimaryKey returns the primary-key column names in key order, read from
// the pk ordinal of PRAGMA table_info.
func (p *Provider) PrimaryKey(ctx context.Context, table metadata.TableRef) ([]string, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	rows, err := p.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type pkCol struct {
		name string
		ord  int
	}
	var pks []pkCol
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		if pk > 0 {
			pks = append(pks, pkCol{name: name, ord: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].ord < pks[j].ord })
	cols := make([]string, 0, len(pks))
	for _, c := range pks {
		cols = append(cols, c.name)
	}
	return cols, nil
}

// ForeignKeys returns the table's outgoing foreign keys via
// PRAGMA foreign_key_list. SQLite does not name constraints, so names are
// synthesized as fk_<table>_<id>.
func (p *Provider) ForeignKeys(ctx context.Context, table metadata.TableRef) ([]metadata.ForeignKeyInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	rows, err := p.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int]*metadata.ForeignKeyInfo)
	var order []int
	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &metadata.ForeignKeyInfo{
				ConstraintName: fmt.Sprintf("fk_%s_%d", table.Name, id),
				ToTable:        refTable,
			}
			byID[id] = fk
			order = append(order, id)
		}
		fk.FromColumns = append(fk.FromColumns, from)
		fk.ToColumns = append(fk.ToColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]metadata.ForeignKeyInfo, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}

// TableSummary returns "": SQLite stores no table comments.
func (p *Provider) TableSummary(ctx context.Context, table metadata.TableRef) (string, error) {
	return "", nil
}

// ApplyRowLimit caps the statement with a LIMIT clause.
func (p *Provider) ApplyRowLimit(sqlStr string, limit int) string {
	return metadata.AppendLimit(sqlStr, limit)
}

// Ensure Provider implements metadata.Provider interface
var _ metadata.Provider = (*Provider)(nil)
