package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/sqlguard"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [sql]",
		Short: "Check SQL against the read-only guard",
		Long: `Check whether a statement would pass the guard askdb applies to
generated SQL: a single SELECT, no write or DDL keywords, no SELECT INTO,
no temp tables. Exits non-zero when the statement is rejected.

The check needs no database connection.`,
		Example: `  # Inline
  askdb validate "SELECT name FROM Club"

  # From a file or pipe
  cat query.sql | askdb validate

  # Machine-readable verdict
  askdb validate "DROP TABLE Club" --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
}

// ValidateOutput is the guard verdict payload.
type ValidateOutput struct {
	SQL      string `json:"sql"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmdCtx := NewCommandContextWithoutDB(cmd)

	sql := strings.Join(args, " ")
	if sql == "" && !isTerminal(cmd.InOrStdin()) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read SQL from stdin: %w", err)
		}
		sql = strings.TrimSpace(string(data))
	}
	if sql == "" {
		return fmt.Errorf("no SQL provided\nHint: Pass a statement as an argument or pipe it on stdin")
	}

	verdict := sqlguard.Check(sql)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := ValidateOutput{SQL: sql, Accepted: verdict.Accepted, Reason: verdict.Reason}
		if err := r.JSON(out); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "SQL Validation"))
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", sql))
		r.Println("")
		if verdict.Accepted {
			r.Println(output.FormatKeyValue("Verdict", "accepted"))
		} else {
			r.Println(output.FormatKeyValue("Verdict", "rejected"))
			r.Println(output.FormatKeyValue("Reason", verdict.Reason))
		}
	default:
		if verdict.Accepted {
			r.Success("SQL is allowed (single read-only SELECT)")
		}
	}

	if !verdict.Accepted {
		return fmt.Errorf("SQL rejected: %s", verdict.Reason)
	}
	return nil
}
