package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/askdb/internal/joinpath"
	"github.com/leapstack-labs/askdb/internal/schema"
)

func clubTable() *schema.Table {
	return &schema.Table{
		Schema: "dbo",
		Name:   "Club",
		Columns: []*schema.Column{
			{Name: "ClubId", DataType: "int", PrimaryKey: true},
			{Name: "Name", DataType: "nvarchar(100)", Summary: "Official club name."},
			{Name: "ShortName", DataType: "nvarchar(10)"},
		},
		Summary: "All clubs taking part in a competition.",
	}
}

func matchTable() *schema.Table {
	return &schema.Table{
		Schema: "dbo",
		Name:   "Match",
		Columns: []*schema.Column{
			{Name: "MatchId", DataType: "int", PrimaryKey: true},
			{Name: "HomeClubId", DataType: "int", ForeignKey: true},
		},
	}
}

func clubFK() *schema.ForeignKey {
	return &schema.ForeignKey{
		Name:        "FK_Match_HomeClub",
		FromSchema:  "dbo",
		FromTable:   "Match",
		FromColumns: []string{"HomeClubId"},
		ToSchema:    "dbo",
		ToTable:     "Club",
		ToColumns:   []string{"ClubId"},
	}
}

func TestBuildSchemaSection(t *testing.T) {
	club := clubTable()
	columns := map[string][]*schema.Column{
		"dbo.club": club.Columns,
	}

	text := Build("list all clubs", []*schema.Table{club}, columns, nil, Options{})

	assert.Contains(t, text, "- dbo.Club: All clubs taking part in a competition.")
	assert.Contains(t, text, "  - ClubId (int)")
	assert.Contains(t, text, "  - Name (nvarchar(100)): Official club name.")
	assert.Contains(t, text, "  - ShortName (nvarchar(10))")
	assert.NotContains(t, text, "Join path")
}

func TestBuildJoinSection(t *testing.T) {
	match, club := matchTable(), clubTable()
	plan := &joinpath.Plan{
		Tables: []*schema.Table{match, club},
		Edges:  []joinpath.Edge{{From: "dbo.Match", To: "dbo.Club", ForeignKey: clubFK()}},
	}

	text := Build("clubs at home", []*schema.Table{match, club}, nil, plan, Options{})

	assert.Contains(t, text, "Join path, starting from dbo.Match AS t0:")
	assert.Contains(t, text, "JOIN dbo.Club AS t1 ON t0.HomeClubId = t1.ClubId")
}

func TestBuildJoinSectionReversedEdge(t *testing.T) {
	match, club := matchTable(), clubTable()
	// Discovery ran from Club to Match, so the constraint's own sides point
	// against the edge direction.
	plan := &joinpath.Plan{
		Tables: []*schema.Table{club, match},
		Edges:  []joinpath.Edge{{From: "dbo.Club", To: "dbo.Match", ForeignKey: clubFK()}},
	}

	text := Build("clubs at home", []*schema.Table{club, match}, nil, plan, Options{})

	assert.Contains(t, text, "JOIN dbo.Match AS t1 ON t1.HomeClubId = t0.ClubId")
}

func TestBuildCompositeJoinCondition(t *testing.T) {
	standing := &schema.Table{Schema: "dbo", Name: "Standing"}
	season := &schema.Table{Schema: "dbo", Name: "Season"}
	fk := &schema.ForeignKey{
		Name:        "FK_Standing_Season",
		FromSchema:  "dbo",
		FromTable:   "Standing",
		FromColumns: []string{"SeasonId", "CompetitionId"},
		ToSchema:    "dbo",
		ToTable:     "Season",
		ToColumns:   []string{"SeasonId", "CompetitionId"},
	}
	plan := &joinpath.Plan{
		Tables: []*schema.Table{standing, season},
		Edges:  []joinpath.Edge{{From: "dbo.Standing", To: "dbo.Season", ForeignKey: fk}},
	}

	text := Build("standings per season", []*schema.Table{standing, season}, nil, plan, Options{})

	assert.Contains(t, text, "ON t0.SeasonId = t1.SeasonId AND t0.CompetitionId = t1.CompetitionId")
}

func TestBuildRules(t *testing.T) {
	club := clubTable()

	text := Build("list all clubs", []*schema.Table{club}, nil, nil, Options{})
	assert.Contains(t, text, "- Never use SELECT *")
	assert.Contains(t, text, "- Return at most 100 rows unless the question asks for fewer.")
	assert.Contains(t, text, "- The query must be read-only.")
	assert.Contains(t, text, "- When filtering dbo.Club by a name, match Name OR ShortName.")

	text = Build("list all clubs", []*schema.Table{club}, nil, nil, Options{RowLimit: 25})
	assert.Contains(t, text, "- Return at most 25 rows unless the question asks for fewer.")
}

func TestBuildNoLookupRuleWithoutShortCode(t *testing.T) {
	match := matchTable()

	text := Build("matches played", []*schema.Table{match}, nil, nil, Options{})
	assert.NotContains(t, text, "by a name, match")
}

func TestBuildQuestionLast(t *testing.T) {
	text := Build("list all clubs", []*schema.Table{clubTable()}, nil, nil, Options{})
	assert.True(t, strings.HasSuffix(text, "Question: list all clubs\n"))
}

func TestBuildDialectNames(t *testing.T) {
	club := clubTable()

	text := Build("q", []*schema.Table{club}, nil, nil, Options{Dialect: "mssql"})
	assert.Contains(t, text, "a single Microsoft SQL Server SELECT statement")

	text = Build("q", []*schema.Table{club}, nil, nil, Options{})
	assert.Contains(t, text, "a single SQL SELECT statement")

	text = Build("q", []*schema.Table{club}, nil, nil, Options{Dialect: "exotic"})
	assert.Contains(t, text, "a single exotic SELECT statement")
}

func TestBuildTruncatesToBudget(t *testing.T) {
	tables := make([]*schema.Table, 0, 40)
	for i := 0; i < 40; i++ {
		tables = append(tables, &schema.Table{
			Schema:  "dbo",
			Name:    strings.Repeat("VeryLongTableName", 4),
			Summary: strings.Repeat("words ", 50),
		})
	}

	text := Build("question", tables, nil, nil, Options{TokenBudget: 10})
	assert.LessOrEqual(t, len(text), 40)
	assert.NotEmpty(t, text)
}

func TestBuildDeterministic(t *testing.T) {
	club, match := clubTable(), matchTable()
	columns := map[string][]*schema.Column{
		"dbo.club":  club.Columns,
		"dbo.match": match.Columns,
	}
	plan := &joinpath.Plan{
		Tables: []*schema.Table{match, club},
		Edges:  []joinpath.Edge{{From: "dbo.Match", To: "dbo.Club", ForeignKey: clubFK()}},
	}

	first := Build("clubs at home", []*schema.Table{match, club}, columns, plan, Options{Dialect: "mssql"})
	second := Build("clubs at home", []*schema.Table{match, club}, columns, plan, Options{Dialect: "mssql"})
	assert.Equal(t, first, second)
}
