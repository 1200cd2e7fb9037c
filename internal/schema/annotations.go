package schema

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Annotations are operator-maintained schema hints kept next to the config
// file: synonyms, table and column summaries, and lookup-column overrides.
// Engine-level comments seed summaries during the build; annotations are
// applied afterwards and win on conflict.
type Annotations struct {
	// Synonyms maps user-facing aliases to bare table names.
	Synonyms map[string]string `yaml:"synonyms"`
	// Tables is keyed by bare or full table name, case-insensitive.
	Tables map[string]TableAnnotation `yaml:"tables"`
}

// TableAnnotation carries the per-table hints.
type TableAnnotation struct {
	Summary string `yaml:"summary"`
	// Columns maps column names to summaries.
	Columns map[string]string `yaml:"columns"`
	// DisplayColumn and ShortCodeColumn force lookup-column detection.
	DisplayColumn   string `yaml:"display_column"`
	ShortCodeColumn string `yaml:"short_code_column"`
}

// LoadAnnotations reads an annotations YAML file. A missing path is not an
// error; it returns empty annotations so callers need no special case.
func LoadAnnotations(path string) (*Annotations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Annotations{}, nil
		}
		return nil, fmt.Errorf("failed to read annotations file: %w", err)
	}
	var ann Annotations
	if err := yaml.Unmarshal(data, &ann); err != nil {
		return nil, fmt.Errorf("failed to parse annotations file: %w", err)
	}
	return &ann, nil
}

// Apply merges the annotations into the database in place. Entries naming
// tables or columns the database does not have are logged and skipped, so a
// shared annotations file survives schema drift.
func (a *Annotations) Apply(db *Database, logger *slog.Logger) {
	if a == nil {
		return
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if len(a.Synonyms) > 0 {
		if db.Synonyms == nil {
			db.Synonyms = make(map[string]string, len(a.Synonyms))
		}
		for alias, target := range a.Synonyms {
			if _, ok := db.Table(target); !ok {
				logger.Warn("annotation synonym targets unknown table", "alias", alias, "table", target)
				continue
			}
			db.Synonyms[strings.ToLower(alias)] = target
		}
	}

	for name, ta := range a.Tables {
		t, ok := db.Table(name)
		if !ok {
			logger.Warn("annotation names unknown table", "table", name)
			continue
		}
		if ta.Summary != "" {
			t.Summary = ta.Summary
		}
		for colName, summary := range ta.Columns {
			c, ok := t.Column(colName)
			if !ok {
				logger.Warn("annotation names unknown column", "table", t.FullName(), "column", colName)
				continue
			}
			c.Summary = summary
		}
		if ta.DisplayColumn != "" {
			if _, ok := t.Column(ta.DisplayColumn); ok {
				t.DisplayColumn = ta.DisplayColumn
			} else {
				logger.Warn("annotation display column not found", "table", t.FullName(), "column", ta.DisplayColumn)
			}
		}
		if ta.ShortCodeColumn != "" {
			if _, ok := t.Column(ta.ShortCodeColumn); ok {
				t.ShortCodeColumn = ta.ShortCodeColumn
			} else {
				logger.Warn("annotation short-code column not found", "table", t.FullName(), "column", ta.ShortCodeColumn)
			}
		}
	}
}
