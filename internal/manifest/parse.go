package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fpang/mission-uploader/internal/mission"
)

// Format identifies which detector accepted a manifest.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Result is the outcome of a successful parse.
type Result struct {
	Format   Format
	Missions []mission.Mission
}

type detector struct {
	format Format
	parse  func(data []byte) ([]mission.Mission, error)
}

var utf8BOM = []byte("\xef\xbb\xbf")

// detectors are tried in order; the first one that succeeds wins.
var detectors = []detector{
	{FormatJSON, parseJSON},
	{FormatCSV, parseCSV},
}

// Parse decodes manifest content, trying JSON first and then CSV.
// name is only used in error messages.
func Parse(name string, data []byte) (Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var attempts []FormatAttempt
	for _, d := range detectors {
		missions, err := d.parse(data)
		if err == nil {
			return Result{Format: d.format, Missions: missions}, nil
		}
		attempts = append(attempts, FormatAttempt{Format: d.format, Err: err})
	}
	return Result{}, &UnknownFormatError{Path: name, Attempts: attempts}
}

// parseJSON accepts a top-level array of mission objects.
func parseJSON(data []byte) ([]mission.Mission, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("not a JSON array")
	}
	var missions []mission.Mission
	if err := json.Unmarshal(trimmed, &missions); err != nil {
		return nil, err
	}
	return missions, nil
}
