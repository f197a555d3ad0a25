package manifest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fpang/mission-uploader/internal/mission"
)

// missionColumn is the column namespace holding mission fields, e.g.
// "Mission.name" or "Mission.sensors.0.assets".
const missionColumn = "Mission"

// maxColumnIndex bounds numeric path segments so a stray header cannot
// allocate an enormous array.
const maxColumnIndex = 1024

var errNoMissionColumns = errors.New("no Mission.* columns in header")

// parseCSV maps every row's Mission column group into a mission record.
// Empty cells are skipped, which also drops empty identifiers. Comma-joined
// tags, usergroups and sensor file lists are split into lists.
func parseCSV(data []byte) ([]mission.Mission, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty CSV")
	}

	header := records[0]
	paths := make([][]string, len(header))
	hasMission := false
	for i, h := range header {
		paths[i] = columnPath(h)
		if len(paths[i]) > 1 && paths[i][0] == missionColumn {
			hasMission = true
		}
	}
	if !hasMission {
		return nil, errNoMissionColumns
	}

	missions := make([]mission.Mission, 0, len(records)-1)
	for rowNum, row := range records[1:] {
		var root any = map[string]any{}
		for i, cell := range row {
			if i >= len(paths) || len(paths[i]) == 0 || cell == "" {
				continue
			}
			root = setPath(root, paths[i], cell)
		}

		obj, _ := root.(map[string]any)
		fields, ok := obj[missionColumn].(map[string]any)
		if !ok {
			// Row with no mission cells.
			continue
		}

		compact(fields)
		splitLists(fields)
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		var m mission.Mission
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		missions = append(missions, m)
	}
	return missions, nil
}

// columnPath turns "Mission.sensors[0].name" or "Mission.sensors.0.name"
// into its path segments.
func columnPath(header string) []string {
	h := strings.TrimSpace(header)
	h = strings.ReplaceAll(h, "[", ".")
	h = strings.ReplaceAll(h, "]", "")
	if h == "" {
		return nil
	}

	var segs []string
	for _, s := range strings.Split(h, ".") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// setPath stores value at path inside node, creating objects for name
// segments and arrays for index segments.
func setPath(node any, path []string, value string) any {
	if len(path) == 0 {
		return value
	}

	seg := path[0]
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx <= maxColumnIndex {
		arr, _ := node.([]any)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		arr[idx] = setPath(arr[idx], path[1:], value)
		return arr
	}

	obj, ok := node.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	obj[seg] = setPath(obj[seg], path[1:], value)
	return obj
}

// splitLists turns the comma-joined list members of a CSV mission into
// JSON lists.
func splitLists(fields map[string]any) {
	splitMember(fields, "tags")
	splitMember(fields, "usergroups")
	sensors, _ := fields["sensors"].([]any)
	for _, s := range sensors {
		if obj, ok := s.(map[string]any); ok {
			splitMember(obj, "assets")
			splitMember(obj, "files")
		}
	}
}

func splitMember(obj map[string]any, key string) {
	if s, ok := obj[key].(string); ok {
		obj[key] = mission.SplitList(s)
	}
}

// compact removes the holes left in arrays by unused column indexes.
func compact(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			v[k] = compact(child)
		}
		return v
	case []any:
		out := v[:0]
		for _, child := range v {
			if child != nil {
				out = append(out, compact(child))
			}
		}
		return out
	default:
		return v
	}
}
