package retrieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{
			name:     "lowercases and splits on punctuation",
			question: "List all clubs!",
			want:     []string{"list", "all", "clubs"},
		},
		{
			name:     "underscores separate tokens",
			question: "short_name vs ShortName",
			want:     []string{"short", "name", "vs", "shortname"},
		},
		{
			name:     "single characters dropped",
			question: "a b cd",
			want:     []string{"cd"},
		},
		{
			name:     "duplicates removed case-insensitively",
			question: "Club club CLUB",
			want:     []string{"club"},
		},
		{
			name:     "digit runs kept",
			question: "top 10 scorers",
			want:     []string{"top", "10", "scorers"},
		},
		{
			name:     "unicode letters kept",
			question: "Städte mit Stadion",
			want:     []string{"städte", "mit", "stadion"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.question))
		})
	}
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("?! - ..."))
}
