package retrieve

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits a question into lowercase tokens. A token is a run of
// letters and digits; everything else, including underscores, separates
// tokens. Single-character runs are dropped and duplicates removed,
// preserving first-seen order.
func Tokenize(question string) []string {
	fields := strings.FieldsFunc(question, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		tok := strings.ToLower(f)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}
