// Package postgres provides a PostgreSQL metadata provider.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// DefaultSchema is the namespace used for unqualified table names.
const DefaultSchema = "public"

// Provider implements metadata.Provider for PostgreSQL.
type Provider struct {
	metadata.BaseProvider
}

// New creates a new PostgreSQL provider instance.
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
	metadata.Register("postgres", func(logger *slog.Logger) metadata.Provider {
		return New(logger)
	})
}

// Dialect returns the provider's dialect name.
func (p *Provider) Dialect() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (p *Provider) Connect(ctx context.Context, cfg metadata.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	p.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// buildDSN constructs a key=value PostgreSQL connection string.
func buildDSN(cfg metadata.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// ListTables returns all base tables outside the system catalogs, optionally
// restricted to the configured schema.
func (p *Provider) ListTables(ctx context.Context) ([]metadata.TableRef, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
			AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`
	args := []any{}
	if p.Cfg.Schema != "" {
		query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema = $1
		ORDER BY table_schema, table_name`
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
// pg_description comments when present.
func (p *Provider) ListColumns(ctx context.Context, table metadata.TableRef) ([]metadata.ColumnInfo, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.ordinal_position,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass::oid, c.ordinal_position), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

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
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
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
// keys are paired through position_in_unique_constraint.
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
			AND rc.constraint_schema = kcu1.constraint_schema
		JOIN information_schema.key_column_usage kcu2
			ON rc.unique_constraint_name = kcu2.constraint_name
			AND rc.unique_constraint_schema = kcu2.constraint_schema
			AND kcu1.position_in_unique_constraint = kcu2.ordinal_position
		WHERE kcu1.table_schema = $1 AND kcu1.table_name = $2
		ORDER BY kcu1.constraint_name, kcu1.ordinal_position`

	rows, err := p.DB.QueryContext(ctx, query, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	return metadata.GroupForeignKeyRows(rows)
}

// TableSummary returns the table's pg_description comment, or "".
func (p *Provider) TableSummary(ctx context.Context, table metadata.TableRef) (string, error) {
	if p.DB == nil {
		return "", fmt.Errorf("not connected")
	}

	query := `SELECT COALESCE(obj_description(format('%I.%I', $1::text, $2::text)::regclass::oid, 'pg_class'), '')`

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
