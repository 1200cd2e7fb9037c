package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		accepted bool
		reason   string
	}{
		{
			name:     "plain select",
			sql:      "SELECT * FROM dbo.Club",
			accepted: true,
		},
		{
			name:     "lowercase select with top",
			sql:      "select top 10 Id, Name from dbo.Competition",
			accepted: true,
		},
		{
			name:     "select with trailing semicolon",
			sql:      "SELECT Name FROM dbo.Club;",
			accepted: true,
		},
		{
			name:     "empty input",
			sql:      "",
			accepted: false,
			reason:   "empty SQL",
		},
		{
			name:     "whitespace only",
			sql:      "   \n\t  ",
			accepted: false,
			reason:   "empty SQL",
		},
		{
			name:     "delete statement",
			sql:      "DELETE FROM dbo.Club",
			accepted: false,
			reason:   "only SELECT statements are allowed",
		},
		{
			name:     "exec statement",
			sql:      "EXEC sp_who2",
			accepted: false,
			reason:   "only SELECT statements are allowed",
		},
		{
			name:     "multiple statements",
			sql:      "SELECT * FROM dbo.Club; SELECT * FROM dbo.Competition",
			accepted: false,
			reason:   "multiple statements are not allowed",
		},
		{
			name:     "select into temp table",
			sql:      "SELECT * INTO #t FROM dbo.Club",
			accepted: false,
			reason:   "SELECT INTO is not allowed",
		},
		{
			name:     "temp table reference",
			sql:      "SELECT * FROM #temp",
			accepted: false,
			reason:   "temp table references are not allowed",
		},
		{
			name:     "global temp table reference",
			sql:      "SELECT * FROM ##shared",
			accepted: false,
			reason:   "temp table references are not allowed",
		},
		{
			name:     "embedded drop keyword",
			sql:      "SELECT Name FROM dbo.Club WHERE 1=1 OR (SELECT 1) = 1 AND 'x' = 'y'; DROP TABLE dbo.Club",
			accepted: false,
			reason:   "multiple statements are not allowed",
		},
		{
			name:     "keyword hidden in block comment",
			sql:      "SELECT Name /* DROP TABLE dbo.Club */ FROM dbo.Club",
			accepted: true,
		},
		{
			name:     "statement hidden behind line comment",
			sql:      "-- DELETE FROM dbo.Club\nSELECT Name FROM dbo.Club",
			accepted: true,
		},
		{
			name:     "comment only",
			sql:      "/* nothing here */",
			accepted: false,
			reason:   "only SELECT statements are allowed",
		},
		{
			name:     "update statement",
			sql:      "UPDATE dbo.Club SET Name = 'x'",
			accepted: false,
			reason:   "only SELECT statements are allowed",
		},
		{
			name:     "keyword in string literal still rejected",
			sql:      "SELECT Name FROM dbo.AuditLog WHERE Action = 'DROP'",
			accepted: false,
			reason:   "disallowed keyword: DROP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.sql)
			assert.Equal(t, tt.accepted, v.Accepted)
			if tt.accepted {
				assert.Empty(t, v.Reason)
			} else {
				assert.Equal(t, tt.reason, v.Reason)
			}
		})
	}
}

func TestCheckDeniedKeywords(t *testing.T) {
	// Every deny-list keyword embedded in an otherwise valid SELECT.
	keywords := []string{
		"INSERT", "UPDATE", "DELETE", "MERGE", "ALTER", "DROP", "TRUNCATE",
		"CREATE", "EXEC", "EXECUTE", "GRANT", "REVOKE", "DENY", "USE",
		"RESTORE", "BACKUP",
	}

	for _, kw := range keywords {
		t.Run(kw, func(t *testing.T) {
			v := Check("SELECT Name FROM dbo.Club WHERE Note = " + kw)
			assert.False(t, v.Accepted)
			assert.Contains(t, v.Reason, kw)
		})
	}
}

func TestCheckKeywordAsSubstringAccepted(t *testing.T) {
	// Deny-list keywords match whole words only; identifiers that merely
	// contain one must pass.
	tests := []string{
		"SELECT Updated, CreatedAt FROM dbo.Club",
		"SELECT DropoutRate FROM dbo.Stats",
		"SELECT Username FROM dbo.Account",
	}

	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			v := Check(sql)
			assert.True(t, v.Accepted, "reason: %s", v.Reason)
		})
	}
}

func TestCheckIdempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM dbo.Club",
		"DELETE FROM dbo.Club",
		"SELECT * FROM #temp",
		"",
	}

	for _, sql := range inputs {
		first := Check(sql)
		second := Check(sql)
		assert.Equal(t, first, second)
	}
}

func TestCheckReasonMentionsStatementType(t *testing.T) {
	v := Check("DELETE FROM dbo.Club")
	assert.False(t, v.Accepted)
	assert.Contains(t, v.Reason, "SELECT")
}
