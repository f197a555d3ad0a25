package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/bus"
)

// Event types emitted by the server while processing.
const (
	TypeHLSDetection          = "hlsDetection"
	TypeHLSProcessing         = "hlsProcessing"
	TypeHLSProcessingComplete = "hlsProcessingComplete"
	TypeIngestProgress        = "ingest_progress"
	TypeIngestComplete        = "ingest_complete"
	TypeAreaCalculation       = "areaCalculation"
)

// Operation labels.
const (
	OpProcessing = "Processing"
	OpIngesting  = "Ingesting"
	OpAreaCalc   = "Area Calc"
)

// Tone tells a reporter how to color the status message.
type Tone int

const (
	TonePlain Tone = iota
	// ToneBusy marks phases without a measurable count.
	ToneBusy
	// ToneCount marks "n/total" counters.
	ToneCount
	ToneDone
)

// State is the progress of server-side processing. It only changes through
// Apply.
type State struct {
	Tasks             int
	CompletedTasks    int
	ProcessedSegments int
	IngestedSegments  int

	Operation string
	Item      string
	Message   string
	Tone      Tone

	// PendingTotal is the segment count of the clip in flight, valid only
	// when PendingResolved is set.
	PendingTotal    int
	PendingResolved bool

	// Done is set by the terminal queue-empty event.
	Done bool
}

// NewState returns the initial state for a batch of tasks.
func NewState(tasks int) State {
	return State{Tasks: tasks, Operation: OpProcessing}
}

// Percent is the share of completed tasks, 0..100.
func (s State) Percent() float64 {
	if s.Tasks <= 0 {
		return 0
	}
	p := float64(s.CompletedTasks) / float64(s.Tasks) * 100
	return math.Min(p, 100)
}

type eventValue struct {
	SourceDuration  float64  `json:"sourceDuration"`
	SegmentDuration float64  `json:"segmentDuration"`
	TotalSegments   float64  `json:"totalSegments"`
	CurrentIndex    float64  `json:"currentIndex"`
	Path            string   `json:"path"`
	SegmentName     string   `json:"segmentName"`
	Phase           string   `json:"phase"`
	Area            *float64 `json:"area"`
}

// Apply returns the state after ev. Events after the terminal one and events
// of unknown type leave the state unchanged.
func (s State) Apply(ev bus.Event) State {
	if s.Done {
		return s
	}
	if ev.QueueEmpty {
		s.Done = true
		s.Operation = OpProcessing
		s.Item = "Complete"
		if ev.Message != "" {
			s.Message, s.Tone = ev.Message, ToneBusy
		} else {
			s.Message, s.Tone = "done", ToneDone
		}
		return s
	}

	var v eventValue
	if len(ev.Value) > 0 {
		// Fields that fail to decode stay zero; the others are kept.
		if err := json.Unmarshal(ev.Value, &v); err != nil {
			log.Debug().Err(err).Str("type", ev.Type).RawJSON("value", ev.Value).Msg("Processing event value not fully decoded")
		}
	}

	switch ev.Type {
	case TypeHLSDetection:
		s.PendingTotal, s.PendingResolved = 0, false
		s.Operation = OpProcessing
		s.Item = ""
		s.Message, s.Tone = "detecting...", ToneBusy

	case TypeHLSProcessing:
		if !s.PendingResolved && v.SegmentDuration > 0 {
			s.PendingTotal = int(math.Round(v.SourceDuration/v.SegmentDuration)) + 1
			s.PendingResolved = true
		}
		s.ProcessedSegments++
		s.Operation = OpProcessing
		s.Item = baseName(v.Path)
		s.Message, s.Tone = fmt.Sprintf("%s/%s", formatNumber(v.TotalSegments), s.pendingLabel()), ToneCount

	case TypeHLSProcessingComplete:
		s.Item = ""
		s.Message, s.Tone = "Hls processing complete", ToneCount

	case TypeIngestProgress:
		s.Operation = OpIngesting
		s.IngestedSegments++
		s.PendingTotal, s.PendingResolved = int(math.Round(v.TotalSegments)), true
		s.Item = baseName(v.SegmentName)
		s.Message, s.Tone = fmt.Sprintf("%s/%s", formatNumber(v.CurrentIndex), formatNumber(v.TotalSegments)), ToneCount

	case TypeIngestComplete:
		s.CompletedTasks++
		s.Item = ""

	case TypeAreaCalculation:
		s.Operation = OpAreaCalc
		if v.Phase == "start" {
			s.Item = ""
			s.Message, s.Tone = "calculating...", ToneBusy
		} else {
			area := 0.0
			if v.Area != nil {
				area = *v.Area
			}
			s.Item = fmt.Sprintf("%.1f sq. km", area)
			s.Message, s.Tone = "complete.", ToneDone
		}
	}
	return s
}

func (s State) pendingLabel() string {
	if !s.PendingResolved {
		return "?"
	}
	return strconv.Itoa(s.PendingTotal)
}

// baseName returns the last element of a slash- or backslash-separated path.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
