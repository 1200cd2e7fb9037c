package joinpath

import (
	"testing"

	"github.com/leapstack-labs/askdb/internal/schema"
)

func fk(name, fromTable, fromCol, toTable, toCol string) *schema.ForeignKey {
	return &schema.ForeignKey{
		Name:        name,
		FromSchema:  "dbo",
		FromTable:   fromTable,
		FromColumns: []string{fromCol},
		ToSchema:    "dbo",
		ToTable:     toTable,
		ToColumns:   []string{toCol},
	}
}

// testDatabase wires a small football graph:
//
//	Match -> Club -> Stadium
//	Match -> Season
//	Referee (isolated)
func testDatabase() *schema.Database {
	return &schema.Database{
		Name: "football",
		Tables: []*schema.Table{
			{Schema: "dbo", Name: "Match", ForeignKeys: []*schema.ForeignKey{
				fk("FK_Match_HomeClub", "Match", "HomeClubId", "Club", "ClubId"),
				fk("FK_Match_Season", "Match", "SeasonId", "Season", "SeasonId"),
			}},
			{Schema: "dbo", Name: "Club", ForeignKeys: []*schema.ForeignKey{
				fk("FK_Club_Stadium", "Club", "StadiumId", "Stadium", "StadiumId"),
			}},
			{Schema: "dbo", Name: "Season"},
			{Schema: "dbo", Name: "Stadium"},
			{Schema: "dbo", Name: "Referee"},
		},
	}
}

func mustTable(t *testing.T, db *schema.Database, name string) *schema.Table {
	t.Helper()
	tbl, ok := db.Table(name)
	if !ok {
		t.Fatalf("fixture table %q not found", name)
	}
	return tbl
}

func checkEdge(t *testing.T, e Edge, from, to, constraint string) {
	t.Helper()
	if e.From != from || e.To != to || e.ForeignKey.Name != constraint {
		t.Errorf("expected edge %s -> %s via %s, got %s -> %s via %s",
			from, to, constraint, e.From, e.To, e.ForeignKey.Name)
	}
}

func planTableNames(p *Plan) []string {
	names := make([]string, len(p.Tables))
	for i, tbl := range p.Tables {
		names[i] = tbl.FullName()
	}
	return names
}

func TestFind_FewerThanTwoTables(t *testing.T) {
	db := testDatabase()

	p := Find(db, nil)
	if len(p.Tables) != 0 || len(p.Edges) != 0 {
		t.Errorf("expected empty plan, got %d tables and %d edges", len(p.Tables), len(p.Edges))
	}

	p = Find(db, []*schema.Table{mustTable(t, db, "Club")})
	if len(p.Tables) != 1 {
		t.Errorf("expected 1 table, got %d", len(p.Tables))
	}
	if len(p.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(p.Edges))
	}
}

func TestFind_DirectJoin(t *testing.T) {
	db := testDatabase()

	p := Find(db, []*schema.Table{mustTable(t, db, "Match"), mustTable(t, db, "Club")})
	if len(p.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(p.Edges))
	}
	checkEdge(t, p.Edges[0], "dbo.Match", "dbo.Club", "FK_Match_HomeClub")

	names := planTableNames(p)
	if len(names) != 2 || names[0] != "dbo.Match" || names[1] != "dbo.Club" {
		t.Errorf("expected tables [dbo.Match dbo.Club], got %v", names)
	}
}

func TestFind_StartOnReferencedSide(t *testing.T) {
	db := testDatabase()

	// The constraint points Match -> Club; starting from Club must still
	// reach Match, with the edge oriented in discovery order.
	p := Find(db, []*schema.Table{mustTable(t, db, "Club"), mustTable(t, db, "Match")})
	if len(p.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(p.Edges))
	}
	checkEdge(t, p.Edges[0], "dbo.Club", "dbo.Match", "FK_Match_HomeClub")
}

func TestFind_MultiHopIncludesIntermediate(t *testing.T) {
	db := testDatabase()

	// Match and Stadium only connect through Club.
	p := Find(db, []*schema.Table{mustTable(t, db, "Match"), mustTable(t, db, "Stadium")})
	if len(p.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(p.Edges))
	}
	checkEdge(t, p.Edges[0], "dbo.Match", "dbo.Club", "FK_Match_HomeClub")
	checkEdge(t, p.Edges[1], "dbo.Club", "dbo.Stadium", "FK_Club_Stadium")

	names := planTableNames(p)
	if len(names) != 3 || names[1] != "dbo.Club" {
		t.Errorf("expected Club as intermediate table, got %v", names)
	}
}

func TestFind_SharedPathDeduplicated(t *testing.T) {
	db := testDatabase()

	selected := []*schema.Table{
		mustTable(t, db, "Match"),
		mustTable(t, db, "Stadium"),
		mustTable(t, db, "Club"),
	}
	p := Find(db, selected)
	if len(p.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(p.Edges))
	}

	// No duplicate (from, to, constraint) triples, and every table beyond
	// the start is the To side of exactly one edge.
	seen := make(map[string]int)
	toSides := make(map[string]int)
	for _, e := range p.Edges {
		seen[edgeKey(e)]++
		toSides[e.To]++
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("edge %s retained %d times", k, n)
		}
	}
	for _, tbl := range p.Tables[1:] {
		if toSides[tbl.FullName()] != 1 {
			t.Errorf("table %s is the To side of %d edges, expected 1", tbl.FullName(), toSides[tbl.FullName()])
		}
	}
}

func TestFind_UnreachableTableOmitted(t *testing.T) {
	db := testDatabase()

	p := Find(db, []*schema.Table{mustTable(t, db, "Match"), mustTable(t, db, "Referee")})
	if len(p.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(p.Edges))
	}
	names := planTableNames(p)
	if len(names) != 1 || names[0] != "dbo.Match" {
		t.Errorf("expected only the start table, got %v", names)
	}
}

func TestFind_ParallelConstraintsUseFirstDeclared(t *testing.T) {
	db := &schema.Database{
		Tables: []*schema.Table{
			{Schema: "dbo", Name: "Match", ForeignKeys: []*schema.ForeignKey{
				fk("FK_Match_HomeClub", "Match", "HomeClubId", "Club", "ClubId"),
				fk("FK_Match_AwayClub", "Match", "AwayClubId", "Club", "ClubId"),
			}},
			{Schema: "dbo", Name: "Club"},
		},
	}

	p := Find(db, []*schema.Table{mustTable(t, db, "Match"), mustTable(t, db, "Club")})
	if len(p.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(p.Edges))
	}
	checkEdge(t, p.Edges[0], "dbo.Match", "dbo.Club", "FK_Match_HomeClub")
}

func TestFind_ConstraintToMissingTableIgnored(t *testing.T) {
	db := &schema.Database{
		Tables: []*schema.Table{
			{Schema: "dbo", Name: "Match", ForeignKeys: []*schema.ForeignKey{
				fk("FK_Match_Venue", "Match", "VenueId", "Venue", "VenueId"),
			}},
			{Schema: "dbo", Name: "Club"},
		},
	}

	// Venue is not part of the schema, so the constraint is not walkable.
	p := Find(db, []*schema.Table{mustTable(t, db, "Match"), mustTable(t, db, "Club")})
	if len(p.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(p.Edges))
	}
}
