package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// rowCountPrinter groups thousands in row-count footers.
var rowCountPrinter = message.NewPrinter(language.English)

// renderResultSet writes a materialized query result in the given format.
func renderResultSet(w io.Writer, rs *metadata.ResultSet, format string) error {
	switch format {
	case "json":
		return renderRowsJSON(w, rs)
	case "csv":
		return renderCSV(w, rs)
	case "md", "markdown":
		return renderRowsMarkdown(w, rs)
	default:
		return renderRowsTable(w, rs)
	}
}

func renderRowsTable(w io.Writer, rs *metadata.ResultSet) error {
	if rs.RowCount() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, values := range rs.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = rowCountPrinter.Fprintf(w, "(%d rows)\n", rs.RowCount())
	return nil
}

// renderRowsJSON emits rows as an array of column-keyed objects.
func renderRowsJSON(w io.Writer, rs *metadata.ResultSet) error {
	results := make([]map[string]any, 0, len(rs.Rows))
	for _, values := range rs.Rows {
		row := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, rs *metadata.ResultSet) error {
	_, _ = fmt.Fprintln(w, strings.Join(rs.Columns, ","))

	for _, values := range rs.Rows {
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = escapeCSV(formatValue(v))
		}
		_, _ = fmt.Fprintln(w, strings.Join(fields, ","))
	}
	return nil
}

func renderRowsMarkdown(w io.Writer, rs *metadata.ResultSet) error {
	if rs.RowCount() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(rs.Columns, " | "))
	seps := make([]string, len(rs.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, values := range rs.Rows {
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(fields, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// validFormat reports whether the result format name is known.
func validFormat(format string) bool {
	switch format {
	case "table", "json", "csv", "md", "markdown":
		return true
	}
	return false
}
