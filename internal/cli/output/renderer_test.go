package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newBufferRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"text", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"JSON", ModeJSON},
		{"auto", ModeAuto},
		{"", ModeAuto},
		{"bogus", ModeAuto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mode(tt.in), "Mode(%q)", tt.in)
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit json on terminal", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newBufferRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNonTTYOutputHasNoANSI(t *testing.T) {
	r, out, errOut := newBufferRenderer(ModeAuto, false)

	r.Header(1, "Schema")
	r.Println(r.Styles().Bold.Render("dbo.Club"))
	r.Success("schema built")
	r.Warning("stale cache")
	r.Error("connection refused")

	assert.False(t, ansiRe.MatchString(out.String()), "stdout contains ANSI: %q", out.String())
	assert.False(t, ansiRe.MatchString(errOut.String()), "stderr contains ANSI: %q", errOut.String())
}

func TestHeaderMarkdown(t *testing.T) {
	r, out, _ := newBufferRenderer(ModeMarkdown, false)

	r.Header(1, "Tables")
	r.Header(2, "dbo.Club")

	assert.Contains(t, out.String(), "# Tables\n")
	assert.Contains(t, out.String(), "## dbo.Club\n")
}

func TestJSONOutput(t *testing.T) {
	r, out, _ := newBufferRenderer(ModeJSON, false)

	require.NoError(t, r.JSON(map[string]any{"outcome": "executed", "rows": 3}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "executed", decoded["outcome"])
	assert.InEpsilon(t, 3.0, decoded["rows"], 0.0001)
}

func TestWarningGoesToStderr(t *testing.T) {
	r, out, errOut := newBufferRenderer(ModeText, false)

	r.Warning("history database missing")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Warning: history database missing")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Tables", FormatHeader(1, "Tables"))
	assert.Equal(t, "###### Deep", FormatHeader(9, "Deep"))
	assert.Equal(t, "# Clamped", FormatHeader(0, "Clamped"))
	assert.Equal(t, "- **Rows**: 42", FormatKeyValue("Rows", "42"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
}

func TestSpinnerNonTTYPrintsStatusOnly(t *testing.T) {
	r, _, errOut := newBufferRenderer(ModeText, false)

	sp := r.NewSpinner("building schema...")
	sp.Start()
	sp.Success("schema built")

	assert.Equal(t, "✓ schema built\n", errOut.String())
}
