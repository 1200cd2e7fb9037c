// Package prompt renders a question and its schema slice into a single
// instruction prompt for the language model. The template is deterministic:
// identical inputs produce identical text, which keeps translations
// reproducible and testable.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/askdb/internal/joinpath"
	"github.com/leapstack-labs/askdb/internal/schema"
)

const (
	// DefaultTokenBudget bounds the prompt when Options.TokenBudget is zero.
	DefaultTokenBudget = 2048
	// DefaultRowLimit is the row cap stated in the rules block when
	// Options.RowLimit is zero.
	DefaultRowLimit = 100

	// charsPerToken approximates prompt size without running a tokenizer.
	charsPerToken = 4
)

var dialectNames = map[string]string{
	"mssql":    "Microsoft SQL Server",
	"postgres": "PostgreSQL",
	"mysql":    "MySQL",
	"sqlite":   "SQLite",
	"duckdb":   "DuckDB",
}

// Options tune the rendered prompt.
type Options struct {
	// Dialect names the SQL engine in the role instruction, e.g. "mssql".
	Dialect string
	// TokenBudget caps the prompt size. The character budget is four times
	// the token budget.
	TokenBudget int
	// RowLimit is the default row cap stated in the rules block.
	RowLimit int
}

// Build renders the prompt: role instruction, one bullet per table with
// indented column bullets, the join path when there is one, a rules block,
// and the literal question last. Column slices are looked up by lowercased
// full table name. Output beyond the character budget is hard-truncated from
// the end; a truncated prompt is degraded, never an error.
func Build(question string, tables []*schema.Table, columns map[string][]*schema.Column, plan *joinpath.Plan, opts Options) string {
	var b strings.Builder

	b.WriteString("You are an expert SQL developer. Using only the schema described below, write a single ")
	b.WriteString(dialectName(opts.Dialect))
	b.WriteString(" SELECT statement that answers the question.\n")

	b.WriteString("\nSchema:\n")
	for _, t := range tables {
		b.WriteString("- ")
		b.WriteString(t.FullName())
		if t.Summary != "" {
			b.WriteString(": ")
			b.WriteString(t.Summary)
		}
		b.WriteByte('\n')
		for _, c := range columns[strings.ToLower(t.FullName())] {
			fmt.Fprintf(&b, "  - %s (%s)", c.Name, c.DataType)
			if c.Summary != "" {
				b.WriteString(": ")
				b.WriteString(c.Summary)
			}
			b.WriteByte('\n')
		}
	}

	if plan != nil && len(plan.Edges) > 0 {
		alias := make(map[string]string, len(plan.Tables))
		for i, t := range plan.Tables {
			alias[strings.ToLower(t.FullName())] = fmt.Sprintf("t%d", i)
		}
		start := plan.Tables[0].FullName()
		fmt.Fprintf(&b, "\nJoin path, starting from %s AS %s:\n", start, alias[strings.ToLower(start)])
		for _, e := range plan.Edges {
			fmt.Fprintf(&b, "JOIN %s AS %s ON %s\n", e.To, alias[strings.ToLower(e.To)], joinCondition(e, alias))
		}
	}

	rowLimit := opts.RowLimit
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Alias every table and qualify every column reference with its alias.\n")
	b.WriteString("- Never use SELECT *; name the columns you need.\n")
	fmt.Fprintf(&b, "- Return at most %d rows unless the question asks for fewer.\n", rowLimit)
	b.WriteString("- The query must be read-only.\n")
	for _, t := range tables {
		display, short, ok := t.LookupColumns()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- When filtering %s by a name, match %s OR %s.\n", t.FullName(), display.Name, short.Name)
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteByte('\n')

	budget := opts.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return truncate(b.String(), budget*charsPerToken)
}

// joinCondition pairs the constraint's column lists positionally, rendering
// each equality against the aliases of its two tables. The constraint's own
// orientation decides which alias each column belongs to.
func joinCondition(e joinpath.Edge, alias map[string]string) string {
	fk := e.ForeignKey
	fromAlias := alias[strings.ToLower(fk.FromFullName())]
	toAlias := alias[strings.ToLower(fk.ToFullName())]

	parts := make([]string, 0, len(fk.FromColumns))
	for i := range fk.FromColumns {
		if i >= len(fk.ToColumns) {
			break
		}
		parts = append(parts, fmt.Sprintf("%s.%s = %s.%s", fromAlias, fk.FromColumns[i], toAlias, fk.ToColumns[i]))
	}
	return strings.Join(parts, " AND ")
}

func dialectName(dialect string) string {
	if name, ok := dialectNames[strings.ToLower(dialect)]; ok {
		return name
	}
	if dialect == "" {
		return "SQL"
	}
	return dialect
}

// truncate hard-cuts text at limit bytes, backing up so the cut never splits
// a multi-byte rune.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
