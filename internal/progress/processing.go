package progress

import (
	"fmt"
	"io"

	"github.com/fpang/mission-uploader/internal/monitor"
)

// ProcessingReporter draws the processing bar. It implements
// monitor.Reporter.
type ProcessingReporter struct {
	line     *line
	missions int
	prev     monitor.State
}

// NewProcessingReporter writes to w; live redraws the bar in place.
// missions is only used in the header line.
func NewProcessingReporter(w io.Writer, live bool, missions int) *ProcessingReporter {
	return &ProcessingReporter{line: newLine(w, live), missions: missions}
}

func (r *ProcessingReporter) Start(s monitor.State) {
	hl := r.line.styles.Highlight
	fmt.Fprintf(r.line.w, "Process %s missions. Processing tasks scheduled at server: %s\n",
		hl.Render(fmt.Sprint(r.missions)), hl.Render(fmt.Sprint(s.Tasks)))
	r.prev = s
	r.line.draw(r.format(s))
}

func (r *ProcessingReporter) Update(s monitor.State) {
	// Off a terminal only task and phase changes get a line.
	if !r.line.live && s.CompletedTasks == r.prev.CompletedTasks && s.Operation == r.prev.Operation {
		r.prev = s
		return
	}
	r.prev = s
	r.line.draw(r.format(s))
}

func (r *ProcessingReporter) Finish(s monitor.State) {
	r.line.draw(r.format(s))
	hl := r.line.styles.Highlight
	r.line.println(fmt.Sprintf("Processed %s segments. Ingested %s",
		hl.Render(fmt.Sprint(s.ProcessedSegments)), hl.Render(fmt.Sprint(s.IngestedSegments))))
}

func (r *ProcessingReporter) format(s monitor.State) string {
	st := r.line.styles
	pct := roundPercent(s.CompletedTasks, s.Tasks)
	return fmt.Sprintf("Missions: %s/%d %s %3.0f%% | Segments: %d:%d | %s: %s | %s",
		st.Done.Render(fmt.Sprint(s.CompletedTasks)), s.Tasks,
		st.Bar.Render(r.line.render(pct)), pct,
		s.ProcessedSegments, s.IngestedSegments,
		s.Operation, s.Item,
		st.tone(s.Tone, s.Message))
}
