package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/monitor"
)

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestUploadReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewUploadReporter(&buf, false)

	m1, m2 := &mission.Mission{Name: "m1"}, &mission.Mission{Name: "m2"}
	r.Open(2)
	r.Begin(0, 2, m1)
	r.End(0, 2, m1, nil)
	r.Begin(1, 2, m2)
	r.Notice("file /x.mp4 was not found locally. Will try to locate it on the server")
	r.End(1, 2, m2, nil)
	r.Close()

	out := buf.String()
	assertContains(t, out,
		"Upload 2 missions...",
		"Missions: 0/2",
		"Name: m1 | uploading...",
		"Missions: 1/2",
		"Name: m1 | done.",
		"not found locally",
		"Missions: 2/2",
		"100%",
		"Upload Complete",
	)
	if strings.Contains(out, "\r") {
		t.Error("non-live output should not redraw in place")
	}
}

func TestUploadReporterError(t *testing.T) {
	var buf bytes.Buffer
	r := NewUploadReporter(&buf, false)

	m := &mission.Mission{Name: "m1"}
	r.Open(1)
	r.Begin(0, 1, m)
	r.End(0, 1, m, errors.New("boom"))

	assertContains(t, buf.String(), "Mission upload error: boom")
}

func TestUploadReporterLive(t *testing.T) {
	var buf bytes.Buffer
	r := NewUploadReporter(&buf, true)

	m := &mission.Mission{Name: "m1"}
	r.Open(1)
	r.Begin(0, 1, m)
	r.End(0, 1, m, nil)
	r.Close()

	out := buf.String()
	assertContains(t, out, "\r", HideCursor, ShowCursor, "Upload Complete")
	if strings.LastIndex(out, ShowCursor) < strings.LastIndex(out, HideCursor) {
		t.Error("cursor should be shown again at the end")
	}
}

func TestProcessingReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewProcessingReporter(&buf, false, 3)

	s := monitor.NewState(2)
	r.Start(s)

	s.ProcessedSegments = 1
	s.Message = "1/6"
	r.Update(s)
	before := strings.Count(buf.String(), "\n")

	s.CompletedTasks = 1
	r.Update(s)
	if got := strings.Count(buf.String(), "\n"); got != before+1 {
		t.Errorf("expected a line for the completed task, got %d new lines", got-before)
	}

	s.ProcessedSegments, s.IngestedSegments = 4, 2
	s.Done, s.Item, s.Message = true, "Complete", "done"
	r.Finish(s)

	out := buf.String()
	assertContains(t, out,
		"Process 3 missions. Processing tasks scheduled at server: 2",
		"Missions: 0/2",
		"Missions: 1/2",
		"50%",
		"Segments: 4:2 | Processing: Complete | done",
		"Processed 4 segments. Ingested 2",
	)
	if strings.Contains(out, "1/6") {
		t.Error("segment-only updates should not be printed off a terminal")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := roundPercent(tt.done, tt.total); got != tt.want {
			t.Errorf("roundPercent(%d, %d) = %v, want %v", tt.done, tt.total, got, tt.want)
		}
	}
}
