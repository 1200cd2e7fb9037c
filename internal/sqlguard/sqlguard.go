// Package sqlguard gates SQL statements before execution. It is a deny-list,
// deliberately not a parser: comments are stripped so keywords cannot be
// hidden in them, then the statement must be a single SELECT free of
// write/DDL keywords, SELECT INTO, and temp-table references. Keywords inside
// string literals are not special-cased, so a literal value containing a
// word like DROP is rejected too.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the result of checking one statement. Accepted statements carry
// an empty Reason.
type Verdict struct {
	Accepted bool
	Reason   string
}

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	selectStartRe  = regexp.MustCompile(`(?i)^select\b`)
	selectIntoRe   = regexp.MustCompile(`(?is)\bselect\b.*?\binto\b`)
	tempTableRe    = regexp.MustCompile(`#{1,2}[A-Za-z_]`)
	denyKeywordRe  = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|alter|drop|truncate|create|exec|execute|grant|revoke|deny|use|restore|backup)\b`)
)

// Check runs the deny-list pipeline over one statement. Each stage
// short-circuits on the first violation. The check is deterministic: the same
// input always yields the same verdict and reason.
func Check(sql string) Verdict {
	if strings.TrimSpace(sql) == "" {
		return reject("empty SQL")
	}

	stripped := strings.TrimSpace(stripComments(sql))

	if !selectStartRe.MatchString(stripped) {
		return reject("only SELECT statements are allowed")
	}
	if selectIntoRe.MatchString(stripped) {
		return reject("SELECT INTO is not allowed")
	}
	if tempTableRe.MatchString(stripped) {
		return reject("temp table references are not allowed")
	}
	if hasMultipleStatements(stripped) {
		return reject("multiple statements are not allowed")
	}
	if kw := denyKeywordRe.FindString(stripped); kw != "" {
		return reject(fmt.Sprintf("disallowed keyword: %s", strings.ToUpper(kw)))
	}

	return Verdict{Accepted: true}
}

func reject(reason string) Verdict {
	return Verdict{Accepted: false, Reason: reason}
}

// stripComments removes /* block */ and -- line comments so that validation
// cannot be bypassed by commenting out keywords.
func stripComments(sql string) string {
	sql = blockCommentRe.ReplaceAllString(sql, " ")
	return lineCommentRe.ReplaceAllString(sql, " ")
}

// hasMultipleStatements reports whether, after stripping one trailing
// semicolon, any semicolon is still followed by non-whitespace.
func hasMultipleStatements(sql string) bool {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	for i := 0; i < len(sql); i++ {
		if sql[i] == ';' && strings.TrimSpace(sql[i+1:]) != "" {
			return true
		}
	}
	return false
}
