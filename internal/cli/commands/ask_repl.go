package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/schema"
	"github.com/leapstack-labs/askdb/internal/translate"
)

func runAskREPL(cmd *cobra.Command, cmdCtx *CommandContext, translator *translate.Translator, opts *AskOptions) error {
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	// Warm the schema snapshot; the first run introspects the database
	spinner := r.NewSpinner("Loading schema...")
	spinner.Start()
	db, err := cmdCtx.Registry.Ensure(ctx, cmdCtx.Build)
	if err != nil {
		spinner.Fail("schema load failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Schema ready (%d tables)", len(db.Tables)))

	hist := openHistoryQuiet(cmdCtx)
	if hist != nil {
		defer func() { _ = hist.Close() }()
	}

	// Setup readline history (project-local, separate from the question log)
	historyFile := filepath.Join(cmdCtx.Cfg.Cache.Dir, "ask_history")

	// Configure readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "askdb> ",
		HistoryFile:     historyFile,
		AutoComplete:    newAskCompleter(db),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Print welcome message
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "askdb (database: %s)\n", db.Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Ask a question, or type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	// REPL loop
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if strings.HasPrefix(line, ".") {
			if handled := handleAskDotCommand(ctx, cmd, cmdCtx, hist, line, opts); handled {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		// Everything else is a question
		out, err := askOnce(ctx, cmdCtx, translator, hist, line, opts)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if err := renderAskOutput(cmd, cmdCtx, out, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func handleAskDotCommand(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, hist *history.Store, line string, opts *AskOptions) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printAskREPLHelp(out)
		return true

	case ".tables":
		db, err := cmdCtx.Registry.Ensure(ctx, cmdCtx.Build)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		renderSchemaTables(out, db)
		return true

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return true
		}
		db, err := cmdCtx.Registry.Ensure(ctx, cmdCtx.Build)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		t, ok := db.Table(parts[1])
		if !ok {
			_, _ = fmt.Fprintf(errOut, "Unknown table: %s\n", parts[1])
			return true
		}
		renderTableDetail(out, t)
		return true

	case ".rebuild":
		db, err := cmdCtx.Registry.Rebuild(ctx, cmdCtx.Build)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		cmdCtx.Renderer.Success(fmt.Sprintf("Schema rebuilt: %d tables, %d columns", len(db.Tables), db.ColumnCount()))
		return true

	case ".limit":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Row limit: %d\n", opts.Limit)
			return true
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			_, _ = fmt.Fprintln(errOut, "Usage: .limit <non-negative number>")
			return true
		}
		opts.Limit = n
		return true

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Format: %s\n", opts.Format)
			return true
		}
		if !validFormat(parts[1]) {
			_, _ = fmt.Fprintln(errOut, "Usage: .format <table|json|csv|md>")
			return true
		}
		opts.Format = parts[1]
		return true

	case ".sql":
		if len(parts) < 2 || (parts[1] != "on" && parts[1] != "off") {
			_, _ = fmt.Fprintln(errOut, "Usage: .sql <on|off>")
			return true
		}
		opts.ShowSQL = parts[1] == "on"
		return true

	case ".history":
		limit := 10
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
				limit = n
			}
		}
		if hist == nil {
			_, _ = fmt.Fprintln(errOut, "History is unavailable")
			return true
		}
		entries, err := hist.List(ctx, limit)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return true
		}
		printHistoryEntries(cmdCtx.Renderer, entries)
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func printAskREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .tables          List the tables in the schema snapshot
  .schema <name>   Show columns and keys for a table
  .rebuild         Re-introspect the database and refresh the snapshot
  .limit [n]       Show or set the row limit
  .format [f]      Show or set the result format (table|json|csv|md)
  .sql <on|off>    Toggle echoing the generated SQL
  .history [n]     Show the last n recorded questions
  .clear           Clear the screen
  .quit / .exit    Exit

Tips:
  - Anything that is not a dot-command is asked as a question
  - Use arrow keys to navigate previous questions
  - Tab completion works for commands and table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newAskCompleter creates a readline completer for dot-commands, with table
// name completion nested under .schema.
func newAskCompleter(db *schema.Database) *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	if db != nil {
		for _, t := range db.Tables {
			tables = append(tables, readline.PcItem(t.FullName()))
		}
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", tables...),
		readline.PcItem(".rebuild"),
		readline.PcItem(".limit"),
		readline.PcItem(".format",
			readline.PcItem("table"),
			readline.PcItem("json"),
			readline.PcItem("csv"),
			readline.PcItem("md"),
		),
		readline.PcItem(".sql",
			readline.PcItem("on"),
			readline.PcItem("off"),
		),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
