// Package mission holds the manifest record types the uploader works with:
// missions, their sensor file sets and their bookmark annotations.
//
// A record keeps every JSON member it was read with in Fields. The typed
// fields only mirror the members the upload flow reads or rewrites, and
// MarshalJSON lays them back over Fields, so a record that was not changed
// is written out exactly as it was read.
package mission

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mission is one geo-referenced recording session from the manifest.
type Mission struct {
	// ID mirrors a string "_id". It is assigned by the server when empty.
	ID string
	// Name mirrors "name". Non-string names hold their literal JSON text.
	Name      string
	Sensors   []Sensor
	Bookmarks []Bookmark

	Fields Fields
}

// Sensor is a named set of asset files belonging to a mission.
type Sensor struct {
	Name string

	Fields Fields
}

// Bookmark is a time/space annotation imported after processing.
type Bookmark struct {
	MissionName string
	SensorName  string

	Fields Fields
}

// NewSensor returns a sensor whose "assets" member lists paths.
func NewSensor(name string, paths ...string) Sensor {
	raw, _ := json.Marshal(paths)
	return Sensor{Name: name, Fields: Fields{"assets": raw}}
}

// FileList returns the sensor's asset paths. "assets" is used when it holds a
// value, otherwise the legacy "files" member. A comma-joined string is split
// into trimmed tokens; list items are taken as given, and object items
// contribute their "path" member.
func (s Sensor) FileList() ([]string, error) {
	key := "assets"
	if !truthy(s.Fields[key]) {
		key = "files"
	}
	raw, ok := s.Fields[key]
	if !ok {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return SplitList(v), nil
	case []any:
		paths := make([]string, 0, len(v))
		for i, item := range v {
			switch it := item.(type) {
			case string:
				paths = append(paths, it)
			case map[string]any:
				p, ok := it["path"].(string)
				if !ok || p == "" {
					return nil, fmt.Errorf("%s[%d]: no path", key, i)
				}
				paths = append(paths, p)
			default:
				return nil, fmt.Errorf("%s[%d]: expected a path, got %s", key, i, kind(item))
			}
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("%s: expected a path list, got %s", key, kind(v))
	}
}

// SplitList splits a comma-joined value into trimmed, non-empty tokens.
// A value without commas yields a one-element list.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SanitizeName replaces every path separator in name with a hyphen.
// Applying it twice yields the same result as applying it once.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

// Sanitize rewrites the mission name and every sensor name so they can be
// used as URL path segments.
func (m *Mission) Sanitize() {
	m.Name = SanitizeName(m.Name)
	for i := range m.Sensors {
		m.Sensors[i].Name = SanitizeName(m.Sensors[i].Name)
	}
}

// FirstSensorName returns the name of the first sensor, or "" when the
// mission has none.
func (m *Mission) FirstSensorName() string {
	if len(m.Sensors) == 0 {
		return ""
	}
	return m.Sensors[0].Name
}

func kind(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}
