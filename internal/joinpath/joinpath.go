// Package joinpath computes the foreign-key joins needed to connect a set of
// tables. Breadth-first search from the first table yields fewest-hop paths,
// which keeps the join count in the rendered prompt small.
package joinpath

import (
	"strings"

	"github.com/leapstack-labs/askdb/internal/schema"
)

// Edge is one join step. From and To are full table names in discovery
// order: To is the table the edge newly connects, regardless of which side
// of the underlying constraint it sits on.
type Edge struct {
	From       string
	To         string
	ForeignKey *schema.ForeignKey
}

// Plan lists the tables a query must join and the edges connecting them.
// Tables[0] is the search start; every later table is the To side of exactly
// one edge, in the same order.
type Plan struct {
	Tables []*schema.Table
	Edges  []Edge
}

// neighbor is one traversable side of a foreign key. Every constraint is
// walkable in both directions so the search may start on either side.
type neighbor struct {
	table *schema.Table
	fk    *schema.ForeignKey
}

// Find connects the selected tables over the schema's foreign keys. With
// fewer than two tables there is nothing to join. Selected tables the search
// cannot reach from the first one are left out of the plan; callers must
// tolerate a plan that does not cover every requested table.
func Find(db *schema.Database, selected []*schema.Table) *Plan {
	if len(selected) < 2 {
		return &Plan{Tables: selected}
	}

	byName := make(map[string]*schema.Table, len(db.Tables))
	for _, t := range db.Tables {
		byName[nameKey(t.FullName())] = t
	}
	adj := adjacency(db, byName)

	start := selected[0]
	startKey := nameKey(start.FullName())

	wanted := make(map[string]bool, len(selected)-1)
	for _, t := range selected[1:] {
		wanted[nameKey(t.FullName())] = true
	}

	// Search outward from the start, remembering the edge that discovered
	// each table so paths can be walked back later. Stops as soon as every
	// selected table has been seen.
	parents := make(map[string]Edge)
	visited := map[string]bool{startKey: true}
	remaining := 0
	for k := range wanted {
		if !visited[k] {
			remaining++
		}
	}
	queue := []*schema.Table{start}
	for len(queue) > 0 && remaining > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, nb := range adj[nameKey(curr.FullName())] {
			nbKey := nameKey(nb.table.FullName())
			if visited[nbKey] {
				continue
			}
			visited[nbKey] = true
			parents[nbKey] = Edge{
				From:       curr.FullName(),
				To:         nb.table.FullName(),
				ForeignKey: nb.fk,
			}
			if wanted[nbKey] {
				remaining--
			}
			queue = append(queue, nb.table)
		}
	}

	plan := &Plan{Tables: []*schema.Table{start}}
	seen := make(map[string]bool)
	for _, t := range selected[1:] {
		tKey := nameKey(t.FullName())
		if !visited[tKey] {
			continue
		}
		// Walk parent edges back to the start, then reverse so every
		// edge's From side is already in the plan when it appears.
		var path []Edge
		for k := tKey; k != startKey; k = nameKey(parents[k].From) {
			path = append(path, parents[k])
		}
		for i := len(path) - 1; i >= 0; i-- {
			e := path[i]
			ek := edgeKey(e)
			if seen[ek] {
				continue
			}
			seen[ek] = true
			plan.Edges = append(plan.Edges, e)
			plan.Tables = append(plan.Tables, byName[nameKey(e.To)])
		}
	}
	return plan
}

// adjacency maps every table to its foreign-key neighbors. An edge is added
// only when both endpoints exist in the schema, and in both directions.
func adjacency(db *schema.Database, byName map[string]*schema.Table) map[string][]neighbor {
	adj := make(map[string][]neighbor)
	for _, t := range db.Tables {
		for _, fk := range t.ForeignKeys {
			from := byName[nameKey(fk.FromFullName())]
			to := byName[nameKey(fk.ToFullName())]
			if from == nil || to == nil {
				continue
			}
			adj[nameKey(from.FullName())] = append(adj[nameKey(from.FullName())], neighbor{table: to, fk: fk})
			adj[nameKey(to.FullName())] = append(adj[nameKey(to.FullName())], neighbor{table: from, fk: fk})
		}
	}
	return adj
}

func nameKey(fullName string) string {
	return strings.ToLower(fullName)
}

// edgeKey identifies an edge by from-table, to-table, and constraint name,
// case-insensitive.
func edgeKey(e Edge) string {
	return strings.ToLower(e.From + "|" + e.To + "|" + e.ForeignKey.Name)
}
