package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and rebuild the cached schema snapshot",
		Long: `Inspect the schema snapshot askdb uses to answer questions.

The snapshot is built by introspecting the database and cached, so questions
do not hit the catalog on every run. Annotations (summaries and synonyms)
from the annotations file are merged in during the build.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List the tables in the snapshot
  askdb schema

  # Re-introspect after a migration
  askdb schema build

  # Show one table's columns and keys
  askdb schema show dbo.Club

  # Snapshot summary as JSON
  askdb schema tables --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemaTables(cmd)
		},
	}

	cmd.AddCommand(newSchemaBuildCommand())
	cmd.AddCommand(newSchemaTablesCommand())
	cmd.AddCommand(newSchemaShowCommand())

	return cmd
}

func newSchemaBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Introspect the database and refresh the snapshot",
		Long: `Introspect the database and write a fresh schema snapshot to the cache.

Use this after migrations or annotation edits. Questions and the HTTP server
pick up the new snapshot automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemaBuild(cmd)
		},
	}
}

func newSchemaTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables in the snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemaTables(cmd)
		},
	}
}

func newSchemaShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table>",
		Short: "Show columns and keys for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaShow(cmd, args[0])
		},
	}
}

// SchemaBuildOutput summarizes a snapshot build.
type SchemaBuildOutput struct {
	Database string `json:"database"`
	Tables   int    `json:"tables"`
	Columns  int    `json:"columns"`
}

// SchemaTableInfo is one table in a snapshot listing.
type SchemaTableInfo struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Summary     string   `json:"summary,omitempty"`
	Columns     int      `json:"columns"`
	PrimaryKey  []string `json:"primary_key,omitempty"`
	ForeignKeys int      `json:"foreign_keys"`
}

// SchemaTablesOutput lists every table in the snapshot.
type SchemaTablesOutput struct {
	Database string            `json:"database"`
	Tables   []SchemaTableInfo `json:"tables"`
}

func runSchemaBuild(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	effectiveMode := r.EffectiveMode()

	// Show spinner for TTY mode
	var spinner *output.Spinner
	if effectiveMode == output.ModeText {
		spinner = r.NewSpinner("Introspecting database...")
		spinner.Start()
	}

	db, err := cmdCtx.Registry.Rebuild(cmd.Context(), cmdCtx.Build)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Schema build failed")
		}
		return err
	}

	if spinner != nil {
		spinner.Success(fmt.Sprintf("Schema built: %d tables, %d columns", len(db.Tables), db.ColumnCount()))
	}

	buildOutput := SchemaBuildOutput{
		Database: db.Name,
		Tables:   len(db.Tables),
		Columns:  db.ColumnCount(),
	}

	switch effectiveMode {
	case output.ModeJSON:
		return r.JSON(buildOutput)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Schema Build"))
		r.Println("")
		r.Println(output.FormatKeyValue("Database", buildOutput.Database))
		r.Println(output.FormatKeyValue("Tables", fmt.Sprintf("%d", buildOutput.Tables)))
		r.Println(output.FormatKeyValue("Columns", fmt.Sprintf("%d", buildOutput.Columns)))
	default:
		// The spinner already reported the outcome in text mode
	}

	return nil
}

func runSchemaTables(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := cmdCtx.Registry.Ensure(cmd.Context(), cmdCtx.Build)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(buildSchemaTablesOutput(db))
	case output.ModeMarkdown:
		renderSchemaTablesMarkdown(r, db)
		return nil
	default:
		r.Println(r.Styles().Header1.Render(fmt.Sprintf("Database: %s", db.Name)))
		renderSchemaTables(cmd.OutOrStdout(), db)
		return nil
	}
}

func runSchemaShow(cmd *cobra.Command, name string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := cmdCtx.Registry.Ensure(cmd.Context(), cmdCtx.Build)
	if err != nil {
		return err
	}

	t, ok := db.Table(name)
	if !ok {
		return fmt.Errorf("table %q not found in schema snapshot", name)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(t)
	case output.ModeMarkdown:
		renderTableDetailMarkdown(r, t)
		return nil
	default:
		renderTableDetail(cmd.OutOrStdout(), t)
		return nil
	}
}

func buildSchemaTablesOutput(db *schema.Database) *SchemaTablesOutput {
	out := &SchemaTablesOutput{Database: db.Name, Tables: make([]SchemaTableInfo, 0, len(db.Tables))}
	for _, t := range db.Tables {
		out.Tables = append(out.Tables, SchemaTableInfo{
			Name:        t.Name,
			FullName:    t.FullName(),
			Summary:     t.Summary,
			Columns:     len(t.Columns),
			PrimaryKey:  t.PrimaryKey,
			ForeignKeys: len(t.ForeignKeys),
		})
	}
	return out
}

// renderSchemaTables writes the snapshot's table listing as a styled table.
// Shared between the schema command and the REPL's .tables.
func renderSchemaTables(w io.Writer, db *schema.Database) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Columns", "Primary Key", "FKs", "Summary"})

	for _, tbl := range db.Tables {
		t.AppendRow(table.Row{
			tbl.FullName(),
			len(tbl.Columns),
			strings.Join(tbl.PrimaryKey, ", "),
			len(tbl.ForeignKeys),
			tbl.Summary,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tables)\n", len(db.Tables))
}

func renderSchemaTablesMarkdown(r *output.Renderer, db *schema.Database) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Database: %s", db.Name)))
	r.Println("")
	for _, t := range db.Tables {
		r.Println(output.FormatHeader(2, t.FullName()))
		if t.Summary != "" {
			r.Println("")
			r.Println(t.Summary)
		}
		r.Println("")
		r.Println(output.FormatKeyValue("Columns", fmt.Sprintf("%d", len(t.Columns))))
		if len(t.PrimaryKey) > 0 {
			r.Println(output.FormatKeyValue("Primary key", strings.Join(t.PrimaryKey, ", ")))
		}
		if len(t.ForeignKeys) > 0 {
			r.Println(output.FormatKeyValue("Foreign keys", fmt.Sprintf("%d", len(t.ForeignKeys))))
		}
		r.Println("")
	}
}

// renderTableDetail writes one table's columns and keys as a styled table.
// Shared between the schema command and the REPL's .schema.
func renderTableDetail(w io.Writer, tbl *schema.Table) {
	_, _ = fmt.Fprintf(w, "Table: %s\n", tbl.FullName())
	if tbl.Summary != "" {
		_, _ = fmt.Fprintf(w, "%s\n", tbl.Summary)
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Key", "Summary"})

	for _, c := range tbl.Columns {
		nullable := "YES"
		if !c.Nullable {
			nullable = "NO"
		}
		t.AppendRow(table.Row{c.Name, c.DataType, nullable, columnKeyLabel(c), c.Summary})
	}
	t.Render()

	if len(tbl.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Foreign keys:")
		for _, fk := range tbl.ForeignKeys {
			_, _ = fmt.Fprintf(w, "  %s: (%s) -> %s (%s)\n",
				fk.Name,
				strings.Join(fk.FromColumns, ", "),
				fk.ToFullName(),
				strings.Join(fk.ToColumns, ", "))
		}
	}
}

func renderTableDetailMarkdown(r *output.Renderer, tbl *schema.Table) {
	r.Println(output.FormatHeader(1, tbl.FullName()))
	if tbl.Summary != "" {
		r.Println("")
		r.Println(tbl.Summary)
	}
	r.Println("")
	for _, c := range tbl.Columns {
		detail := c.DataType
		if label := columnKeyLabel(c); label != "" {
			detail += ", " + label
		}
		if c.Summary != "" {
			detail += " - " + c.Summary
		}
		r.Println(output.FormatKeyValue(c.Name, detail))
	}
	if len(tbl.ForeignKeys) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Foreign keys"))
		for _, fk := range tbl.ForeignKeys {
			r.Printf("- %s: (%s) -> %s (%s)\n",
				fk.Name,
				strings.Join(fk.FromColumns, ", "),
				fk.ToFullName(),
				strings.Join(fk.ToColumns, ", "))
		}
	}
}

func columnKeyLabel(c *schema.Column) string {
	switch {
	case c.PrimaryKey && c.ForeignKey:
		return "PK, FK"
	case c.PrimaryKey:
		return "PK"
	case c.ForeignKey:
		return "FK"
	}
	return ""
}
