// Package metadata defines the provider contract for database introspection
// and read-only query execution.
//
// A provider knows how to list tables, columns, primary keys and foreign keys
// for one SQL engine, and how to execute an already-validated SELECT. Concrete
// implementations live in pkg/providers/ subdirectories and register
// themselves at init time.
package metadata

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Dialect selects the provider (e.g. "mssql", "postgres").
	Dialect string

	// DSN is a full connection string. When set it takes precedence over the
	// discrete fields below.
	DSN string

	// Path is the file path for file-based engines (SQLite, DuckDB).
	// Use ":memory:" for in-memory databases.
	Path string

	// Host is the hostname for network-based engines.
	Host string

	// Port is the port number for network-based engines.
	Port int

	// Database is the database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// Schema is the default namespace for unqualified table names.
	Schema string

	// Options contains additional driver-specific options.
	Options map[string]string
}

// TableRef identifies one table by namespace and name.
type TableRef struct {
	Schema string
	Name   string
}

// String returns the "schema.name" form, or just the name when the engine
// has no namespaces.
func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// ColumnInfo is one introspected column.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
	Position int
	// Summary carries the engine-level column comment when the engine
	// stores one (MS_Description, pg_description, mysql column comments).
	Summary string
}

// ForeignKeyInfo is one introspected foreign-key constraint of the queried
// table, which is always the referencing side. FromColumns and ToColumns are
// ordered and equal length.
type ForeignKeyInfo struct {
	ConstraintName string
	FromColumns    []string
	ToSchema       string
	ToTable        string
	ToColumns      []string
}

// Rows wraps sql.Rows to keep database/sql out of caller signatures.
type Rows struct {
	*sql.Rows
}

// Provider is the interface every database provider implements.
type Provider interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// ListTables returns all user tables, in engine catalog order.
	ListTables(ctx context.Context) ([]TableRef, error)

	// ListColumns returns the table's columns ordered by ordinal position.
	ListColumns(ctx context.Context, table TableRef) ([]ColumnInfo, error)

	// PrimaryKey returns the primary-key column names in key order, or an
	// empty slice when the table has no primary key.
	PrimaryKey(ctx context.Context, table TableRef) ([]string, error)

	// ForeignKeys returns the table's outgoing foreign-key constraints.
	ForeignKeys(ctx context.Context, table TableRef) ([]ForeignKeyInfo, error)

	// Query executes a SQL statement that returns rows. The statement must
	// already have passed safety validation.
	Query(ctx context.Context, sql string) (*Rows, error)

	// TableSummary returns the engine-level table comment, or "" when the
	// engine stores none.
	TableSummary(ctx context.Context, table TableRef) (string, error)

	// ApplyRowLimit caps the statement's result size using the engine's
	// native construct (TOP, LIMIT). Statements that already carry a cap are
	// returned unchanged.
	ApplyRowLimit(sql string, limit int) string

	// Dialect returns the provider's dialect name.
	Dialect() string
}
