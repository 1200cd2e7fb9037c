package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles is the set of lipgloss styles used across commands. All styles are
// bound to one renderer so color capability is decided once per process.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// TableName styles schema object names in listings.
	TableName lipgloss.Style

	// StatusSuccess and StatusFailed carry their glyphs; render with String().
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// newStyles builds the style set for a writer. Non-terminal output pins the
// profile to Ascii so rendered strings contain no escape codes.
func newStyles(w io.Writer, isTTY bool) *Styles {
	opts := []termenv.OutputOption{termenv.WithProfile(termenv.Ascii)}
	if isTTY {
		opts = []termenv.OutputOption{termenv.WithProfile(termenv.ColorProfile())}
	}
	lr := lipgloss.NewRenderer(w, opts...)

	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),

		Success: lr.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("1")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("4")),

		TableName: lr.NewStyle().Foreground(lipgloss.Color("6")),

		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("2")).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("1")).SetString("✗"),
	}
}
