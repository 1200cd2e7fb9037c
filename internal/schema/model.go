// Package schema defines the database schema model: tables, columns,
// primary/foreign keys, summaries, and synonyms. The model is built once by
// introspection (or loaded from a cache artifact) and treated as an immutable
// snapshot afterward.
package schema

import (
	"fmt"
	"strings"
)

// Column describes a single table column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
	ForeignKey bool   `json:"foreign_key"`
	// Summary is a short human-readable description used for relevance scoring.
	Summary string `json:"summary,omitempty"`
}

// ForeignKey describes a foreign-key constraint. The owning table is always
// the referencing (from) side. FromColumns and ToColumns are ordered,
// equal-length sequences mapping positionally for composite keys.
type ForeignKey struct {
	Name        string   `json:"name"`
	FromSchema  string   `json:"from_schema"`
	FromTable   string   `json:"from_table"`
	FromColumns []string `json:"from_columns"`
	ToSchema    string   `json:"to_schema"`
	ToTable     string   `json:"to_table"`
	ToColumns   []string `json:"to_columns"`
}

// FromFullName returns the referencing table's "schema.table" name.
func (fk *ForeignKey) FromFullName() string {
	return joinFullName(fk.FromSchema, fk.FromTable)
}

// ToFullName returns the referenced table's "schema.table" name.
func (fk *ForeignKey) ToFullName() string {
	return joinFullName(fk.ToSchema, fk.ToTable)
}

// Table describes one table: its identity, owned columns, keys, and an
// optional summary.
type Table struct {
	Schema      string        `json:"schema"`
	Name        string        `json:"name"`
	Columns     []*Column     `json:"columns"`
	PrimaryKey  []string      `json:"primary_key,omitempty"`
	ForeignKeys []*ForeignKey `json:"foreign_keys,omitempty"`
	Summary     string        `json:"summary,omitempty"`

	// DisplayColumn and ShortCodeColumn pin the lookup columns of a
	// name-lookup table explicitly, overriding name-based detection.
	DisplayColumn   string `json:"display_column,omitempty"`
	ShortCodeColumn string `json:"short_code_column,omitempty"`
}

// FullName returns the table's "schema.name" identity. The schema part is
// omitted when empty (engines without namespaces, e.g. SQLite).
func (t *Table) FullName() string {
	return joinFullName(t.Schema, t.Name)
}

// Column returns the owned column with the given name, case-insensitive.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// Display-name and short-code column candidates for name-lookup tables,
// checked in order against normalized column names.
var (
	displayNameColumns = []string{"name", "fullname", "displayname"}
	shortCodeColumns   = []string{"shortname", "shortcode", "code", "abbreviation"}
)

// LookupColumns returns the display-name and short-code columns of a
// name-lookup table (one that users find by typing either a full name or an
// abbreviation, such as a club or competition list). A table qualifies only
// when it has both kinds of column; matching ignores case and underscores.
// Explicit overrides win over detection when they name an existing column.
func (t *Table) LookupColumns() (display, short *Column, ok bool) {
	display = t.lookupColumn(t.DisplayColumn, displayNameColumns)
	short = t.lookupColumn(t.ShortCodeColumn, shortCodeColumns)
	if display == nil || short == nil {
		return nil, nil, false
	}
	return display, short, true
}

func (t *Table) lookupColumn(override string, candidates []string) *Column {
	if override != "" {
		if c, ok := t.Column(override); ok {
			return c
		}
	}
	return t.findColumn(candidates)
}

func (t *Table) findColumn(candidates []string) *Column {
	for _, want := range candidates {
		for _, c := range t.Columns {
			if normalizeIdent(c.Name) == want {
				return c
			}
		}
	}
	return nil
}

// Database is the full schema snapshot for one database on one server.
type Database struct {
	Server string   `json:"server,omitempty"`
	Name   string   `json:"name"`
	Tables []*Table `json:"tables"`
	// Synonyms maps user-facing aliases to canonical bare table names,
	// e.g. "team" → "CompetitionTeam". Keys are matched case-insensitively.
	Synonyms map[string]string `json:"synonyms,omitempty"`
}

// Table resolves a table by bare name or by full "schema.table" name,
// case-insensitive. Returns false when absent.
func (d *Database) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.FullName(), name) {
			return t, true
		}
	}
	return nil, false
}

// ColumnCount returns the total number of columns across all tables.
func (d *Database) ColumnCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Columns)
	}
	return n
}

// Validate checks the model invariants: full table names are unique
// (case-insensitive), every primary-key entry names an owned column, and
// every foreign key's FromColumns name owned columns with a matching
// ToColumns length.
func (d *Database) Validate() error {
	seen := make(map[string]struct{}, len(d.Tables))
	for _, t := range d.Tables {
		key := strings.ToLower(t.FullName())
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate table %q", t.FullName())
		}
		seen[key] = struct{}{}

		for _, pk := range t.PrimaryKey {
			if _, ok := t.Column(pk); !ok {
				return fmt.Errorf("table %q: primary key column %q not found", t.FullName(), pk)
			}
		}
		for _, fk := range t.ForeignKeys {
			if len(fk.FromColumns) != len(fk.ToColumns) {
				return fmt.Errorf("table %q: foreign key %q has %d from-columns but %d to-columns",
					t.FullName(), fk.Name, len(fk.FromColumns), len(fk.ToColumns))
			}
			if len(fk.FromColumns) == 0 {
				return fmt.Errorf("table %q: foreign key %q has no columns", t.FullName(), fk.Name)
			}
			for _, col := range fk.FromColumns {
				if _, ok := t.Column(col); !ok {
					return fmt.Errorf("table %q: foreign key %q references unknown column %q",
						t.FullName(), fk.Name, col)
				}
			}
		}
	}
	return nil
}

func joinFullName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// normalizeIdent lowercases an identifier and removes underscores so that
// "short_name", "ShortName" and "shortname" compare equal.
func normalizeIdent(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "")
}
