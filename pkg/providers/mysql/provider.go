// Package mysql provides a MySQL/MariaDB metadata provider.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // mysql driver

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// Provider implements metadata.Provider for MySQL. The namespace of every
// table is the current database, so TableRef.Schema carries the database name.
type Provider struct {
	metadata.BaseProvider
}

// New creates a new MySQL provider instance.
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
	metadata.Register("mysql", func(logger *slog.Logger) metadata.Provider {
		return New(logger)
	})
}

// Dialect returns the provider's dialect name.
func (p *Provider) Dialect() string {
	return "mysql"
}

// Connect establishes a connection to MySQL.
func (p *Provider) Connect(ctx context.Context, cfg metadata.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	p.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping mysql: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// buildDSN constructs a go-sql-driver connection string.
func buildDSN(cfg metadata.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	auth := cfg.Username
	if cfg.Password != "" {
		auth += ":" + cfg.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s", auth, host, port, cfg.Database)
}

// ListTables returns all base tables of the current database.
func (p *Provider) ListTables(ctx context.Context) ([]metadata.TableRef, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

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

// ListColumns returns the table's columns in ordinal order, including column
// comments.
func (p *Provider) ListColumns(ctx context.Context, table metadata.TableRef) ([]metadata.ColumnInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, ORDINAL_POSITION, COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []metadata.ColumnInfo
	for rows.Next() {
		var col metadata.ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Position, &col.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		col.Nullable = nullable == "YES"
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
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

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

// ForeignKeys returns the table's outgoing foreign-key constraints.
// KEY_COLUMN_USAGE carries the referenced side directly.
func (p *Provider) ForeignKeys(ctx context.Context, table metadata.TableRef) ([]metadata.ForeignKeyInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

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
		SELECT TABLE_COMMENT
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`

	var summary string
	if err := p.DB.QueryRowContext(ctx, query, table.Schema, table.Name).Scan(&summary); err != nil {
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
