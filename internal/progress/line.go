package progress

import (
	"fmt"
	"io"
	"math"

	progressbar "github.com/charmbracelet/bubbles/progress"
)

const barWidth = 30

// line is one status line, redrawn in place when live.
type line struct {
	w      io.Writer
	live   bool
	styles Styles
	bar    progressbar.Model
	last   string
	active bool
}

func newLine(w io.Writer, live bool) *line {
	return &line{
		w:      w,
		live:   live,
		styles: NewStyles(w),
		bar: progressbar.New(
			progressbar.WithWidth(barWidth),
			progressbar.WithSolidFill(string(colorCyan)),
			progressbar.WithoutPercentage(),
		),
	}
}

// render draws the bar for percent (0..100).
func (l *line) render(percent float64) string {
	return l.bar.ViewAs(math.Min(math.Max(percent, 0), 100) / 100)
}

func (l *line) draw(s string) {
	if s == l.last {
		return
	}
	l.last = s
	if !l.live {
		fmt.Fprintln(l.w, s)
		return
	}
	if !l.active {
		io.WriteString(l.w, HideCursor)
		l.active = true
	}
	fmt.Fprintf(l.w, "\r%s%s", s, clearLine)
}

// println ends the live line, if any, and writes s on its own line.
func (l *line) println(s string) {
	l.stop()
	fmt.Fprintln(l.w, s)
}

func (l *line) stop() {
	if l.live && l.active {
		fmt.Fprint(l.w, "\n"+ShowCursor)
		l.active = false
	}
	l.last = ""
}

func roundPercent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(done) / float64(total) * 100)
}
