// Package progress renders the uploader's terminal output: the identity
// banner highlights, the per-mission upload bar and the processing bar.
//
// On a terminal the bars are redrawn in place. Otherwise each state change
// is written as its own line so the output stays readable in CI logs.
package progress

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/fpang/mission-uploader/internal/monitor"
)

// Terminal control sequences.
const (
	HideCursor = "\x1b[?25l"
	ShowCursor = "\x1b[?25h"
	clearLine  = "\x1b[K"
)

// ANSI palette.
const (
	colorRed        = lipgloss.Color("1")
	colorGreen      = lipgloss.Color("2")
	colorYellow     = lipgloss.Color("3")
	colorMagenta    = lipgloss.Color("5")
	colorCyan       = lipgloss.Color("6")
	colorBrightBlue = lipgloss.Color("12")
)

// Styles are the text styles bound to one output's color profile.
type Styles struct {
	Highlight lipgloss.Style
	Busy      lipgloss.Style
	Count     lipgloss.Style
	Done      lipgloss.Style
	Error     lipgloss.Style
	Bar       lipgloss.Style
}

// NewStyles detects the color support of w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Highlight: r.NewStyle().Foreground(colorYellow),
		Busy:      r.NewStyle().Foreground(colorMagenta),
		Count:     r.NewStyle().Foreground(colorBrightBlue),
		Done:      r.NewStyle().Foreground(colorGreen),
		Error:     r.NewStyle().Foreground(colorRed),
		Bar:       r.NewStyle().Foreground(colorCyan),
	}
}

// HighlightFunc adapts the highlight style to a plain string func.
func (s Styles) HighlightFunc() func(string) string {
	return func(v string) string { return s.Highlight.Render(v) }
}

func (s Styles) tone(t monitor.Tone, msg string) string {
	switch t {
	case monitor.ToneBusy:
		return s.Busy.Render(msg)
	case monitor.ToneCount:
		return s.Count.Render(msg)
	case monitor.ToneDone:
		return s.Done.Render(msg)
	default:
		return msg
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// RestoreCursor re-shows the cursor on w when it is a terminal.
func RestoreCursor(w io.Writer) {
	if IsTerminal(w) {
		io.WriteString(w, ShowCursor)
	}
}
