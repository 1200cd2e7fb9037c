// Package duckdb provides a DuckDB metadata provider.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// DefaultSchema is the namespace used for unqualified table names.
const DefaultSchema = "main"

// Provider implements metadata.Provider for DuckDB.
type Provider struct {
	metadata.BaseProvider
}

// New creates a new DuckDB provider instance.
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
	metadata.Register("duckdb", func(logger *slog.Logger) metadata.Provider {
		return New(logger)
	})
}

// Dialect returns the provider's dialect name.
func (p *Provider) Dialect() string {
	return "duckdb"
}

// Connect opens the DuckDB database file. An empty path opens an in-memory
// database.
func (p *Provider) Connect(ctx context.Context, cfg metadata.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}

	p.Logger.Debug("opening duckdb database", slog.String("path", dsn))

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// ListTables returns all base tables.
func (p *Provider) ListTables(ctx context.Context) ([]metadata.TableRef, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []metadata.TableRef
	for rows.Next() {
		var ref metadata.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, ref)
	}
	return tables, rows.Err()
}

// ListColumns returns the table's columns via duckdb_columns, which carries
// column comments.
func (p *Provider) ListColumns(ctx context.Context, table metadata.TableRef) ([]metadata.ColumnInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT column_name, data_type, is_nullable, column_index, COALESCE(comment, '')
		FROM duckdb_columns()
		WHERE schema_name = ? AND table_name = ?
		ORDER BY column_index`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []metadata.ColumnInfo
	for rows.Next() {
		var col metadata.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Position, &col.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// PrimaryKey returns the primary-key column names in key order.
func (p *Provider) PrimaryKey(ctx context.Context, table metadata.TableRef) ([]string, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = ? AND tc.table_name = ?
		ORDER BY kcu.ordinal_position`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key row: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ForeignKeys returns the table's outgoing foreign-key constraints. Composite
// keys are paired by ordinal position.
func (p *Provider) ForeignKeys(ctx context.Context, table metadata.TableRef) ([]metadata.ForeignKeyInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT
			kcu1.constraint_name,
			kcu1.column_name,
			kcu2.table_schema AS ref_schema,
			kcu2.table_name AS ref_table,
			kcu2.column_name AS ref_column
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu1
			ON rc.constraint_name = kcu1.constraint_name
		JOIN information_schema.key_column_usage kcu2
			ON rc.unique_constraint_name = kcu2.constraint_name
			AND kcu1.ordinal_position = kcu2.ordinal_position
		WHERE kcu1.table_schema = ? AND kcu1.table_name = ?
		ORDER BY kcu1.constraint_name, kcu1.ordinal_position`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	return metadata.GroupForeignKeyRows(rows)
}

// TableSummary returns the table's comment, or "".
func (p *Provider) TableSummary(ctx context.Context, table metadata.TableRef) (string, error) {
	if p.DB == nil {
		return "", fmt.Errorf("not connected")
	}

	query := `
		SELECT COALESCE(comment, '')
		FROM duckdb_tables()
		WHERE schema_name = ? AND table_name = ?`

	var summary string
	err := p.DB.QueryRowContext(ctx, query, table.Schema, table.Name).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get table summary for %s: %w", table, err)
	}
	return summary, nil
}

// ApplyRowLimit caps the statement with a LIMIT clause.
func (p *Provider) ApplyRowLimit(sqlStr string, limit int) string {
	return metadata.AppendLimit(sqlStr, limit)
}

// Ensure Provider implements metadata.Provider interface
var _ metadata.Provider = (*Provider)(nil)
