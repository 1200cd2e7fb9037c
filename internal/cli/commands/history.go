package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and how they ended",
		Long: `Show the question log: what was asked, the SQL it produced, and the
outcome (executed, rejected, no result, or error). Entries are newest first.`,
		Example: `  # Last 20 questions
  askdb history

  # Everything, as JSON
  askdb history --limit 0 --output json

  # Forget it all
  askdb history clear`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryClear(cmd)
		},
	}
}

// HistoryEntryOutput is one question log entry in machine-readable form.
type HistoryEntryOutput struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	RowCount   int64     `json:"row_count"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryOutput is the history listing payload.
type HistoryOutput struct {
	Entries []HistoryEntryOutput `json:"entries"`
	Count   int                  `json:"count"`
}

func runHistoryList(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContextWithoutDB(cmd)

	hist, err := cmdCtx.OpenHistory()
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	entries, err := hist.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(buildHistoryOutput(entries))
	case output.ModeMarkdown:
		renderHistoryMarkdown(r, entries)
		return nil
	default:
		printHistoryEntries(r, entries)
		return nil
	}
}

func runHistoryClear(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutDB(cmd)

	hist, err := cmdCtx.OpenHistory()
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	n, err := hist.Clear(cmd.Context())
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]int64{"cleared": n})
	}
	r.Success(fmt.Sprintf("Cleared %d history entries", n))
	return nil
}

func buildHistoryOutput(entries []*history.Entry) *HistoryOutput {
	out := &HistoryOutput{Entries: make([]HistoryEntryOutput, 0, len(entries)), Count: len(entries)}
	for _, e := range entries {
		out.Entries = append(out.Entries, HistoryEntryOutput{
			ID:         e.ID,
			Question:   e.Question,
			SQL:        e.SQL,
			Outcome:    e.Outcome,
			Reason:     e.Reason,
			RowCount:   e.RowCount,
			DurationMS: e.Duration.Milliseconds(),
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// printHistoryEntries writes the question log in text form. Shared between
// the history command and the REPL's .history.
func printHistoryEntries(r *output.Renderer, entries []*history.Entry) {
	if len(entries) == 0 {
		r.Println("No history yet. Ask a question first: askdb ask \"...\"")
		return
	}

	styles := r.Styles()
	for _, e := range entries {
		ts := e.CreatedAt.Local().Format("2006-01-02 15:04")
		r.Printf("%s %s  %s\n", historyIcon(styles, e.Outcome), styles.Muted.Render(ts), e.Question)

		switch e.Outcome {
		case history.OutcomeExecuted:
			detail := fmt.Sprintf("%s  (%d rows, %s)", compactSQL(e.SQL), e.RowCount, e.Duration.Round(time.Millisecond))
			r.Printf("    %s\n", styles.Muted.Render(detail))
		case history.OutcomeNoResult:
			r.Printf("    %s\n", styles.Muted.Render("no result: "+e.Reason))
		case history.OutcomeRejected:
			r.Printf("    %s\n", styles.Muted.Render("rejected: "+e.Reason))
		case history.OutcomeError:
			r.Printf("    %s\n", styles.Muted.Render("error: "+e.Reason))
		}
	}
	r.Printf("\n(%d entries)\n", len(entries))
}

func renderHistoryMarkdown(r *output.Renderer, entries []*history.Entry) {
	r.Println(output.FormatHeader(1, "Question History"))
	r.Println("")
	if len(entries) == 0 {
		r.Println("No history yet.")
		return
	}
	for _, e := range entries {
		ts := e.CreatedAt.Local().Format("2006-01-02 15:04")
		r.Println(output.FormatKeyValue(ts, fmt.Sprintf("%s (%s)", e.Question, e.Outcome)))
		if e.SQL != "" {
			r.Printf("  `%s`\n", compactSQL(e.SQL))
		}
	}
}

func historyIcon(styles *output.Styles, outcome string) string {
	switch outcome {
	case history.OutcomeExecuted:
		return styles.StatusSuccess.String()
	case history.OutcomeRejected:
		return styles.Warning.Render("!")
	case history.OutcomeNoResult:
		return styles.Muted.Render("-")
	default:
		return styles.StatusFailed.String()
	}
}

// compactSQL collapses whitespace and truncates for one-line display.
func compactSQL(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}
