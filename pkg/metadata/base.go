package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// BaseProvider provides common database/sql functionality for providers.
// Embed this struct in concrete implementations to get standard Close, Ping
// and Query implementations.
type BaseProvider struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseProvider) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (b *BaseProvider) Ping(ctx context.Context) error {
	if b.DB == nil {
		return fmt.Errorf("not connected")
	}
	return b.DB.PingContext(ctx)
}

// Query executes a SQL statement that returns rows.
func (b *BaseProvider) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("not connected")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseProvider) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name, using
// the given default schema when the reference is unqualified.
func ParseQualifiedName(table, defaultSchema string) TableRef {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return TableRef{Schema: parts[0], Name: parts[1]}
	}
	return TableRef{Schema: defaultSchema, Name: table}
}

// GroupForeignKeyRows assembles ForeignKeyInfo values from introspection rows
// shaped (constraint, from-column, to-schema, to-table, to-column), ordered by
// constraint name and ordinal position. Consecutive rows of one constraint
// become one composite key. Every relational provider returns this row shape.
func GroupForeignKeyRows(rows *sql.Rows) ([]ForeignKeyInfo, error) {
	var fks []ForeignKeyInfo
	var current *ForeignKeyInfo
	for rows.Next() {
		var constraint, fromCol, toSchema, toTable, toCol string
		if err := rows.Scan(&constraint, &fromCol, &toSchema, &toTable, &toCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		if current == nil || current.ConstraintName != constraint {
			fks = append(fks, ForeignKeyInfo{
				ConstraintName: constraint,
				ToSchema:       toSchema,
				ToTable:        toTable,
			})
			current = &fks[len(fks)-1]
		}
		current.FromColumns = append(current.FromColumns, fromCol)
		current.ToColumns = append(current.ToColumns, toCol)
	}
	return fks, rows.Err()
}

var (
	limitRe = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	topRe   = regexp.MustCompile(`(?i)^\s*select\s+(distinct\s+)?top\b`)
	selRe   = regexp.MustCompile(`(?i)^(\s*select\s+)(distinct\s+)?`)
)

// AppendLimit caps a statement with a trailing LIMIT clause. Statements that
// already contain a LIMIT are returned unchanged. Used by providers whose
// engine supports the LIMIT keyword.
func AppendLimit(sqlStr string, limit int) string {
	if limit <= 0 || limitRe.MatchString(sqlStr) {
		return sqlStr
	}
	trimmed := strings.TrimRight(strings.TrimSpace(sqlStr), ";")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// InsertTop caps a statement by inserting TOP right after the leading
// SELECT (and DISTINCT, when present). Statements that already start with
// SELECT TOP are returned unchanged. Used by the mssql provider.
func InsertTop(sqlStr string, limit int) string {
	if limit <= 0 || topRe.MatchString(sqlStr) {
		return sqlStr
	}
	m := selRe.FindStringSubmatch(sqlStr)
	if m == nil {
		return sqlStr
	}
	prefix := m[1] + m[2]
	return fmt.Sprintf("%sTOP %d %s", prefix, limit, sqlStr[len(m[0]):])
}
