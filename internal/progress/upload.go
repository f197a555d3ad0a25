package progress

import (
	"fmt"
	"io"

	"github.com/fpang/mission-uploader/internal/mission"
)

const msgUploading = "uploading..."

// UploadReporter draws the mission upload bar.
type UploadReporter struct {
	line    *line
	total   int
	done    int
	name    string
	message string
	notice  bool
}

// NewUploadReporter writes to w; live redraws the bar in place.
func NewUploadReporter(w io.Writer, live bool) *UploadReporter {
	return &UploadReporter{line: newLine(w, live)}
}

// Open announces the batch.
func (r *UploadReporter) Open(total int) {
	r.total = total
	fmt.Fprintf(r.line.w, "Upload %s missions...\n", r.line.styles.Highlight.Render(fmt.Sprint(total)))
	r.redraw()
}

func (r *UploadReporter) Begin(index, total int, m *mission.Mission) {
	r.total, r.done, r.name = total, index, m.Name
	r.message, r.notice = msgUploading, false
	r.redraw()
}

// Notice shows an informational message for the mission in flight.
func (r *UploadReporter) Notice(msg string) {
	r.message, r.notice = msg, true
	r.redraw()
}

func (r *UploadReporter) End(index, total int, m *mission.Mission, err error) {
	r.total, r.done, r.name = total, index+1, m.Name
	if err != nil {
		r.line.println(r.line.styles.Error.Render("Mission upload error: ") + err.Error())
		return
	}
	if !r.notice {
		r.message = "done."
	}
	r.redraw()
	// A notice stays visible on its own line.
	if r.notice {
		r.line.stop()
	}
}

// Close ends the bar and prints the completion line.
func (r *UploadReporter) Close() {
	r.line.println(r.line.styles.Done.Render("Upload Complete"))
}

func (r *UploadReporter) redraw() {
	st := r.line.styles
	msg := r.message
	switch {
	case msg == "":
	case r.notice:
		msg = st.Busy.Render(msg)
	default:
		msg = st.Done.Render(msg)
	}
	pct := roundPercent(r.done, r.total)
	r.line.draw(fmt.Sprintf("Missions: %s/%d %s %3.0f%% | Name: %s | %s",
		st.Done.Render(fmt.Sprint(r.done)), r.total,
		st.Bar.Render(r.line.render(pct)), pct,
		r.name, msg))
}
