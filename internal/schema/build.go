package schema

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// introspectLimit bounds concurrent per-table introspection so a build does
// not exhaust the server's connection or cursor limits.
const introspectLimit = 8

// BuildOptions configure a schema build.
type BuildOptions struct {
	// Server and Database label the snapshot; neither affects introspection.
	Server   string
	Database string
	// Annotations are merged into the snapshot after introspection.
	Annotations *Annotations
	Logger      *slog.Logger
}

// Build introspects every table through the provider and assembles a
// snapshot. Per-table work fans out in parallel; assembly keeps the
// provider's table order, so identical databases produce identical
// snapshots. Any introspection failure fails the whole build.
func Build(ctx context.Context, provider metadata.Provider, opts BuildOptions) (*Database, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	refs, err := provider.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*Table, len(refs))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(introspectLimit)
	for i, ref := range refs {
		eg.Go(func() error {
			t, err := buildTable(egctx, provider, ref)
			if err != nil {
				return fmt.Errorf("failed to introspect %s: %w", ref, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	db := &Database{Server: opts.Server, Name: opts.Database, Tables: tables}
	opts.Annotations.Apply(db, logger)
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("introspected schema is invalid: %w", err)
	}

	logger.Info("schema built", "tables", len(db.Tables), "columns", db.ColumnCount())
	return db, nil
}

func buildTable(ctx context.Context, provider metadata.Provider, ref metadata.TableRef) (*Table, error) {
	cols, err := provider.ListColumns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	pk, err := provider.PrimaryKey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key: %w", err)
	}
	fks, err := provider.ForeignKeys(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}
	summary, err := provider.TableSummary(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read table summary: %w", err)
	}

	t := &Table{
		Schema:     ref.Schema,
		Name:       ref.Name,
		Columns:    make([]*Column, 0, len(cols)),
		PrimaryKey: pk,
		Summary:    summary,
	}
	for _, c := range cols {
		t.Columns = append(t.Columns, &Column{
			Name:     c.Name,
			DataType: c.DataType,
			Nullable: c.Nullable,
			Summary:  c.Summary,
		})
	}
	for _, fk := range fks {
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Name:        fk.ConstraintName,
			FromSchema:  ref.Schema,
			FromTable:   ref.Name,
			FromColumns: fk.FromColumns,
			ToSchema:    fk.ToSchema,
			ToTable:     fk.ToTable,
			ToColumns:   fk.ToColumns,
		})
	}
	markKeyColumns(t)
	return t, nil
}

// markKeyColumns sets the per-column key flags from the table's key lists.
func markKeyColumns(t *Table) {
	for _, name := range t.PrimaryKey {
		if c, ok := t.Column(name); ok {
			c.PrimaryKey = true
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, name := range fk.FromColumns {
			if c, ok := t.Column(name); ok {
				c.ForeignKey = true
			}
		}
	}
}
