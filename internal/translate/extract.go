package translate

import (
	"regexp"
	"strings"
)

// Extraction patterns, tried in strict order; the first match wins.
var (
	// A fenced code block, optionally tagged as sql.
	fencedRe = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")
	// A SELECT span up to the next semicolon.
	selectSemiRe = regexp.MustCompile(`(?is)\bselect\b.*?;`)
	// A SELECT span up to a blank line or the end of the text.
	selectBlockRe = regexp.MustCompile(`(?is)\bselect\b.*?(\n\s*\n|$)`)
	// Last resort: SELECT ... FROM ... up to a semicolon or the end.
	selectFromRe = regexp.MustCompile(`(?is)\bselect\b.*?\bfrom\b.*?(;|$)`)

	fromTokenRe = regexp.MustCompile(`(?i)\bfrom\b`)
)

// ExtractSQL pulls a SQL statement out of a free-form model reply. Replies
// wrap SQL in markdown fences, prose, or nothing at all; the stages cover
// those shapes from most to least reliable. The blank-line stage only
// accepts spans that contain the token FROM, so prose mentioning "select"
// does not swallow the whole reply. Returns false when nothing resembling
// SQL is found; malformed output never causes an error.
func ExtractSQL(reply string) (string, bool) {
	if m := fencedRe.FindStringSubmatch(reply); m != nil {
		return finish(m[1])
	}
	if m := selectSemiRe.FindString(reply); m != "" {
		return finish(strings.TrimSuffix(m, ";"))
	}
	if m := selectBlockRe.FindString(reply); m != "" && fromTokenRe.MatchString(m) {
		return finish(m)
	}
	if m := selectFromRe.FindString(reply); m != "" {
		return finish(strings.TrimSuffix(m, ";"))
	}
	return "", false
}

func finish(sql string) (string, bool) {
	sql = strings.TrimSpace(sql)
	return sql, sql != ""
}
