// Package mssql provides a SQL Server metadata provider.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// DefaultSchema is the namespace used for unqualified table names.
const DefaultSchema = "dbo"

// Provider implements metadata.Provider for SQL Server.
type Provider struct {
	metadata.BaseProvider
}

// New creates a new SQL Server provider instance.
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
	metadata.Register("mssql", func(logger *slog.Logger) metadata.Provider {
		return New(logger)
	})
}

// Dialect returns the provider's dialect name.
func (p *Provider) Dialect() string {
	return "mssql"
}

// Connect establishes a connection to SQL Server.
func (p *Provider) Connect(ctx context.Context, cfg metadata.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	p.Logger.Debug("connecting to sqlserver", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlserver connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlserver: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// buildDSN constructs a sqlserver:// connection URL.
func buildDSN(cfg metadata.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ListTables returns all base tables, optionally restricted to the
// configured schema.
func (p *Provider) ListTables(ctx context.Context) ([]metadata.TableRef, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME`
	args := []any{}
	if p.Cfg.Schema != "" {
		query = `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = @p1
		ORDER BY TABLE_SCHEMA, TABLE_NAME`
		args = append(args, p.Cfg.Schema)
	}

	rows, err := p.DB.QueryContext(ctx, query, args...)
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

// ListColumns returns the table's columns in ordinal order, including
// MS_Description comments when present.
func (p *Provider) ListColumns(ctx context.Context, table metadata.TableRef) ([]metadata.ColumnInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.ORDINAL_POSITION,
			CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND ep.minor_id = c.ORDINAL_POSITION
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []metadata.ColumnInfo
	for rows.Next() {
		var col metadata.ColumnInfo
		var nullable string
		var comment sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Position, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		col.Nullable = nullable == "YES"
		col.Summary = comment.String
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
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`

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
			kcu1.CONSTRAINT_NAME,
			kcu1.COLUMN_NAME,
			kcu2.TABLE_SCHEMA AS REF_SCHEMA,
			kcu2.TABLE_NAME AS REF_TABLE,
			kcu2.COLUMN_NAME AS REF_COLUMN
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1
			ON rc.CONSTRAINT_NAME = kcu1.CONSTRAINT_NAME
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
			ON rc.UNIQUE_CONSTRAINT_NAME = kcu2.CONSTRAINT_NAME
			AND kcu1.ORDINAL_POSITION = kcu2.ORDINAL_POSITION
		WHERE kcu1.TABLE_SCHEMA = @p1 AND kcu1.TABLE_NAME = @p2
		ORDER BY kcu1.CONSTRAINT_NAME, kcu1.ORDINAL_POSITION`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	return metadata.GroupForeignKeyRows(rows)
}

// TableSummary returns the table's MS_Description comment, or "".
func (p *Provider) TableSummary(ctx context.Context, table metadata.TableRef) (string, error) {
	if p.DB == nil {
		return "", fmt.Errorf("not connected")
	}

	query := `
		SELECT CAST(ep.value AS NVARCHAR(MAX))
		FROM sys.extended_properties ep
		WHERE ep.major_id = OBJECT_ID(@p1)
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'`

	var summary sql.NullString
	err := p.DB.QueryRowContext(ctx, query, table.String()).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get table summary for %s: %w", table, err)
	}
	return summary.String, nil
}

// ApplyRowLimit caps the statement with T-SQL TOP.
func (p *Provider) ApplyRowLimit(sqlStr string, limit int) string {
	return metadata.InsertTop(sqlStr, limit)
}

// Ensure Provider implements metadata.Provider interface
var _ metadata.Provider = (*Provider)(nil)
