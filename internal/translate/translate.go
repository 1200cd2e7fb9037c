// Package translate turns a natural-language question into a single SQL
// statement. It selects the schema slice worth showing the model, renders
// the prompt, sends it, and digs the SQL out of the reply. Model output is
// untrusted: anything unusable yields a no-result outcome, never a panic.
package translate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/askdb/internal/joinpath"
	"github.com/leapstack-labs/askdb/internal/prompt"
	"github.com/leapstack-labs/askdb/internal/registry"
	"github.com/leapstack-labs/askdb/internal/retrieve"
	"github.com/leapstack-labs/askdb/internal/schema"
)

const (
	// DefaultMaxTables caps how many tables the prompt describes.
	DefaultMaxTables = 5

	// DefaultMaxColumns caps the ranked columns per table, before key
	// columns are added back.
	DefaultMaxColumns = 10
)

// LLM sends a rendered prompt and returns the raw model reply.
type LLM interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Options tune how much schema the model sees and how the prompt is shaped.
type Options struct {
	MaxTables   int
	MaxColumns  int
	Dialect     string
	TokenBudget int
	RowLimit    int
}

// Result is the outcome of one translation. Exactly one of SQL or NoResult
// is meaningful; Reason explains a no-result outcome in user-facing terms.
type Result struct {
	SQL      string
	NoResult bool
	Reason   string

	// Prompt and Tables describe what the model was shown, for dry runs
	// and verbose output.
	Prompt string
	Tables []string
}

// Translator wires the schema registry, retrieval, and the model client
// into the question-to-SQL pipeline.
type Translator struct {
	registry *registry.Registry
	llm      LLM
	build    registry.BuildFunc
	opts     Options
	logger   *slog.Logger
}

func New(reg *registry.Registry, llm LLM, build registry.BuildFunc, opts Options, logger *slog.Logger) *Translator {
	if opts.MaxTables < 1 {
		opts.MaxTables = DefaultMaxTables
	}
	if opts.MaxColumns < 1 {
		opts.MaxColumns = DefaultMaxColumns
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Translator{registry: reg, llm: llm, build: build, opts: opts, logger: logger}
}

// Translate runs the full pipeline for one question. A schema build failure
// is the only hard error; everything downstream of a usable schema degrades
// to a no-result outcome.
func (t *Translator) Translate(ctx context.Context, question string) (Result, error) {
	db, err := t.registry.Ensure(ctx, t.build)
	if err != nil {
		return Result{}, err
	}

	r := retrieve.New(db)
	tables := r.TopTables(question, t.opts.MaxTables)
	if len(tables) == 0 {
		t.logger.Debug("no tables matched the question", "question", question)
		return Result{NoResult: true, Reason: "no tables in the schema match the question"}, nil
	}

	columns := make(map[string][]*schema.Column, len(tables))
	names := make([]string, 0, len(tables))
	for _, tbl := range tables {
		cols := r.TopColumns(tbl, question, t.opts.MaxColumns)
		columns[strings.ToLower(tbl.FullName())] = withLookupColumns(tbl, cols)
		names = append(names, tbl.FullName())
	}

	plan := joinpath.Find(db, tables)

	text := prompt.Build(question, tables, columns, plan, prompt.Options{
		Dialect:     t.opts.Dialect,
		TokenBudget: t.opts.TokenBudget,
		RowLimit:    t.opts.RowLimit,
	})

	reply, err := t.llm.Send(ctx, text)
	if err != nil {
		t.logger.Warn("model request failed", "error", err)
		return Result{NoResult: true, Reason: "the language model could not be reached", Prompt: text, Tables: names}, nil
	}

	sql, ok := ExtractSQL(reply)
	if !ok {
		t.logger.Debug("model reply contained no SQL", "reply_length", len(reply))
		return Result{NoResult: true, Reason: "the model reply contained no recognizable SQL", Prompt: text, Tables: names}, nil
	}

	t.logger.Debug("translated question", "tables", names, "sql_length", len(sql))
	return Result{SQL: sql, Prompt: text, Tables: names}, nil
}

// withLookupColumns adds the display-name and short-code columns of a
// name-lookup table even when retrieval did not rank them. Questions refer
// to rows by either form, so the model must see both to filter correctly.
func withLookupColumns(t *schema.Table, cols []*schema.Column) []*schema.Column {
	display, short, ok := t.LookupColumns()
	if !ok {
		return cols
	}
	for _, c := range []*schema.Column{display, short} {
		if !containsColumn(cols, c.Name) {
			cols = append(cols, c)
		}
	}
	return cols
}

func containsColumn(cols []*schema.Column, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
