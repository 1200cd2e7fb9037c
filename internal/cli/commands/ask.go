package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/sqlguard"
	"github.com/leapstack-labs/askdb/internal/translate"
	"github.com/leapstack-labs/askdb/pkg/metadata"
)

// outcomeTranslated marks a dry run that produced SQL without executing it.
// Executed, rejected, and no-result outcomes reuse the history labels.
const outcomeTranslated = "translated"

// AskOptions holds options for the ask command.
type AskOptions struct {
	Format  string
	Limit   int
	DryRun  bool
	ShowSQL bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{ShowSQL: true}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the database a question in plain language",
		Long: `Translate a plain-language question into SQL and execute it.

The question is matched against the cached schema snapshot to pick relevant
tables, an LLM turns it into a SELECT statement, and the statement is
validated before anything touches the database. Rejected or unanswerable
questions never execute.

When invoked without arguments, enters interactive REPL mode.`,
		Example: `  # Ask a question directly
  askdb ask "which clubs play in the Bundesliga"

  # Show the SQL without executing it
  askdb ask "average stadium capacity per country" --dry-run

  # Cap the result size
  askdb ask "all players" --limit 20

  # Output as JSON for scripting
  askdb ask "clubs per country" --format json

  # Interactive mode
  askdb ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum rows to return (0 uses translate.row_limit)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Translate and validate without executing")

	return cmd
}

// AskOutput is the serializable outcome of one question.
type AskOutput struct {
	Question   string   `json:"question"`
	Outcome    string   `json:"outcome"`
	SQL        string   `json:"sql,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Tables     []string `json:"tables,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	RowCount   int      `json:"row_count"`
	DurationMS int64    `json:"duration_ms"`
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	if !validFormat(opts.Format) {
		return fmt.Errorf("invalid format %q (valid: table, json, csv, md)", opts.Format)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	translator, err := cmdCtx.Translator()
	if err != nil {
		return err
	}

	// Determine question source
	var question string
	switch {
	case len(args) > 0:
		question = strings.Join(args, " ")
	case !isTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		question = strings.TrimSpace(string(content))
	default:
		// No input, TTY detected - enter REPL mode
		return runAskREPL(cmd, cmdCtx, translator, opts)
	}

	if question == "" {
		return fmt.Errorf("question is empty")
	}

	hist := openHistoryQuiet(cmdCtx)
	if hist != nil {
		defer func() { _ = hist.Close() }()
	}

	out, err := askOnce(cmd.Context(), cmdCtx, translator, hist, question, opts)
	if err != nil {
		return err
	}
	return renderAskOutput(cmd, cmdCtx, out, opts)
}

// askOnce runs one question through translation, validation, and execution.
// Handled outcomes (no result, rejected SQL) come back in the output rather
// than as errors; only schema and execution failures are errors.
func askOnce(ctx context.Context, cmdCtx *CommandContext, translator *translate.Translator, hist *history.Store, question string, opts *AskOptions) (*AskOutput, error) {
	started := time.Now()

	res, err := translator.Translate(ctx, question)
	if err != nil {
		recordHistory(ctx, cmdCtx, hist, &history.Entry{
			Question: question,
			Outcome:  history.OutcomeError,
			Reason:   err.Error(),
			Duration: time.Since(started),
		})
		return nil, err
	}

	out := &AskOutput{Question: question, Tables: res.Tables}

	if res.NoResult {
		out.Outcome = history.OutcomeNoResult
		out.Reason = res.Reason
		recordHistory(ctx, cmdCtx, hist, &history.Entry{
			Question: question,
			Outcome:  history.OutcomeNoResult,
			Reason:   res.Reason,
			Duration: time.Since(started),
		})
		return out, nil
	}
	out.SQL = res.SQL

	if verdict := sqlguard.Check(res.SQL); !verdict.Accepted {
		out.Outcome = history.OutcomeRejected
		out.Reason = verdict.Reason
		recordHistory(ctx, cmdCtx, hist, &history.Entry{
			Question: question,
			SQL:      res.SQL,
			Outcome:  history.OutcomeRejected,
			Reason:   verdict.Reason,
			Duration: time.Since(started),
		})
		return out, nil
	}

	if opts.DryRun {
		// Dry runs are not recorded; nothing ran
		out.Outcome = outcomeTranslated
		out.DurationMS = time.Since(started).Milliseconds()
		return out, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = cmdCtx.Cfg.Translate.RowLimit
	}
	rows, err := cmdCtx.Provider.Query(ctx, cmdCtx.Provider.ApplyRowLimit(res.SQL, limit))
	if err != nil {
		recordHistory(ctx, cmdCtx, hist, &history.Entry{
			Question: question,
			SQL:      res.SQL,
			Outcome:  history.OutcomeError,
			Reason:   err.Error(),
			Duration: time.Since(started),
		})
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	rs, err := rows.Collect(limit)
	if err != nil {
		recordHistory(ctx, cmdCtx, hist, &history.Entry{
			Question: question,
			SQL:      res.SQL,
			Outcome:  history.OutcomeError,
			Reason:   err.Error(),
			Duration: time.Since(started),
		})
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	out.Outcome = history.OutcomeExecuted
	out.Columns = rs.Columns
	out.Rows = rs.Rows
	out.RowCount = rs.RowCount()
	out.DurationMS = time.Since(started).Milliseconds()
	recordHistory(ctx, cmdCtx, hist, &history.Entry{
		Question: question,
		SQL:      res.SQL,
		Outcome:  history.OutcomeExecuted,
		RowCount: int64(rs.RowCount()),
		Duration: time.Since(started),
	})
	return out, nil
}

func renderAskOutput(cmd *cobra.Command, cmdCtx *CommandContext, out *AskOutput, opts *AskOptions) error {
	r := cmdCtx.Renderer
	if opts.Format == "json" {
		return r.JSON(out)
	}

	styles := r.Styles()

	switch out.Outcome {
	case history.OutcomeNoResult:
		r.Printf("No result: %s\n", out.Reason)
		return nil
	case history.OutcomeRejected:
		r.Warning(fmt.Sprintf("generated SQL was rejected: %s", out.Reason))
		r.Println(styles.Muted.Render(out.SQL))
		return nil
	}

	// Echo the SQL; csv output stays bare for piping
	if opts.ShowSQL && opts.Format != "csv" {
		if opts.Format == "md" || opts.Format == "markdown" || r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatCodeBlock("sql", out.SQL))
			r.Println("")
		} else {
			r.Println(styles.Info.Render(out.SQL))
		}
	}

	if out.Outcome == outcomeTranslated {
		return nil
	}

	rs := &metadata.ResultSet{Columns: out.Columns, Rows: out.Rows}
	return renderResultSet(cmd.OutOrStdout(), rs, opts.Format)
}

// openHistoryQuiet opens the history store, logging instead of failing when
// it is unavailable. Asking must work even if history cannot be written.
func openHistoryQuiet(cmdCtx *CommandContext) *history.Store {
	hist, err := cmdCtx.OpenHistory()
	if err != nil {
		cmdCtx.Logger.Warn("history unavailable", "error", err)
		return nil
	}
	return hist
}

func recordHistory(ctx context.Context, cmdCtx *CommandContext, hist *history.Store, e *history.Entry) {
	if hist == nil {
		return
	}
	if err := hist.Append(ctx, e); err != nil {
		cmdCtx.Logger.Warn("failed to record history", "error", err)
	}
}

// isTerminal reports whether the reader is a character device. Injected
// test readers are never terminals.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
