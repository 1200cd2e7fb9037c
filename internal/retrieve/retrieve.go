// Package retrieve ranks schema tables and columns by relevance to a
// natural-language question. Scoring is a cheap additive token match over
// names, synonyms, and summaries; its job is to pick a small slice of a
// large schema so the prompt stays within budget, not to understand the
// question.
package retrieve

import (
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/askdb/internal/schema"
)

// Scoring weights. All rules that fire contribute to the same score.
const (
	weightTableName     = 5
	weightTableFullName = 5
	weightSynonym       = 3
	weightColumnMatch   = 1.25
	weightSummaryHit    = 0.25

	weightColumnName    = 3
	weightColumnSummary = 0.25
	weightPrimaryKey    = 0.1
	weightForeignKey    = 0.2
)

// Retriever scores the tables and columns of one schema snapshot.
type Retriever struct {
	db *schema.Database
}

func New(db *schema.Database) *Retriever {
	return &Retriever{db: db}
}

// TopTables returns up to max tables ranked by descending relevance to the
// question. Only tables with a positive score are returned, so a question
// with no overlap at all yields an empty slice. Equal scores keep schema
// declaration order. A max below 1 is treated as 1.
func (r *Retriever) TopTables(question string, max int) []*schema.Table {
	if max < 1 {
		max = 1
	}
	tokens := Tokenize(question)

	type candidate struct {
		table *schema.Table
		score float64
	}
	var candidates []candidate
	for _, t := range r.db.Tables {
		if s := r.scoreTable(t, tokens); s > 0 {
			candidates = append(candidates, candidate{table: t, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	tables := make([]*schema.Table, len(candidates))
	for i, c := range candidates {
		tables[i] = c.table
	}
	return tables
}

// TopColumns returns up to max columns of t ranked by descending relevance,
// then appends every primary-key and foreign-key column that did not make
// the cut, in declaration order. Key columns are always described so the
// model can join the tables it is shown. A max below 1 is treated as 1.
func (r *Retriever) TopColumns(t *schema.Table, question string, max int) []*schema.Column {
	if max < 1 {
		max = 1
	}
	tokens := Tokenize(question)

	type candidate struct {
		col   *schema.Column
		score float64
	}
	candidates := make([]candidate, len(t.Columns))
	for i, c := range t.Columns {
		candidates[i] = candidate{col: c, score: scoreColumn(c, tokens)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	cols := make([]*schema.Column, 0, len(candidates))
	selected := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		cols = append(cols, c.col)
		selected[strings.ToLower(c.col.Name)] = struct{}{}
	}
	for _, c := range t.Columns {
		if !c.PrimaryKey && !c.ForeignKey {
			continue
		}
		if _, ok := selected[strings.ToLower(c.Name)]; ok {
			continue
		}
		selected[strings.ToLower(c.Name)] = struct{}{}
		cols = append(cols, c)
	}
	return cols
}

// scoreTable sums every matching rule for one table. Names must equal a
// token exactly; synonym keys match inside a token, so a plural question
// word still reaches the singular alias ("clubs" matches the key "club");
// summaries are matched by substring, once per occurrence.
func (r *Retriever) scoreTable(t *schema.Table, tokens []string) float64 {
	bare := strings.ToLower(t.Name)
	full := strings.ToLower(t.FullName())
	summary := strings.ToLower(t.Summary)

	var score float64
	for _, tok := range tokens {
		if tok == bare {
			score += weightTableName
		}
		if tok == full {
			score += weightTableFullName
		}
		score += float64(strings.Count(summary, tok)) * weightSummaryHit
	}
	for key, target := range r.db.Synonyms {
		if !strings.EqualFold(target, t.Name) {
			continue
		}
		lowKey := strings.ToLower(key)
		for _, tok := range tokens {
			if strings.Contains(tok, lowKey) {
				score += weightSynonym
				break
			}
		}
	}
	for _, c := range t.Columns {
		if slices.Contains(tokens, strings.ToLower(c.Name)) {
			score += weightColumnMatch
		}
	}
	return score
}

func scoreColumn(c *schema.Column, tokens []string) float64 {
	name := strings.ToLower(c.Name)
	summary := strings.ToLower(c.Summary)

	var score float64
	if slices.Contains(tokens, name) {
		score += weightColumnName
	}
	for _, tok := range tokens {
		score += float64(strings.Count(summary, tok)) * weightColumnSummary
	}
	if c.PrimaryKey {
		score += weightPrimaryKey
	}
	if c.ForeignKey {
		score += weightForeignKey
	}
	return score
}
