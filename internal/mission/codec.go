package mission

import (
	"encoding/json"
	"errors"
	"strings"
)

// Fields are a record's JSON members by key, as read.
type Fields map[string]json.RawMessage

var errNotObject = errors.New("expected a JSON object")

func (m *Mission) UnmarshalJSON(data []byte) error {
	f, err := readFields(data)
	if err != nil {
		return err
	}
	*m = Mission{Fields: f}

	// Only an empty string identifier is dropped; other shapes are kept.
	if raw, ok := f["_id"]; ok && isString(raw) {
		if m.ID = textOf(raw); m.ID == "" {
			delete(f, "_id")
		}
	}
	m.Name = f.text("name")
	if sensors, ok := decodeField[[]Sensor](f, "sensors"); ok {
		m.Sensors = sensors
	}
	if bookmarks, ok := decodeField[[]Bookmark](f, "bookmarks"); ok {
		m.Bookmarks = bookmarks
	}
	return nil
}

func (m Mission) MarshalJSON() ([]byte, error) {
	out := m.Fields.clone()
	if m.ID != "" {
		out.setText("_id", m.ID)
	}
	out.setText("name", m.Name)
	if m.Sensors != nil {
		if err := out.set("sensors", m.Sensors); err != nil {
			return nil, err
		}
	}
	if m.Bookmarks != nil {
		if err := out.set("bookmarks", m.Bookmarks); err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]json.RawMessage(out))
}

func (s *Sensor) UnmarshalJSON(data []byte) error {
	f, err := readFields(data)
	if err != nil {
		return err
	}
	*s = Sensor{Name: f.text("name"), Fields: f}
	return nil
}

func (s Sensor) MarshalJSON() ([]byte, error) {
	out := s.Fields.clone()
	out.setText("name", s.Name)
	return json.Marshal(map[string]json.RawMessage(out))
}

func (b *Bookmark) UnmarshalJSON(data []byte) error {
	f, err := readFields(data)
	if err != nil {
		return err
	}
	*b = Bookmark{
		MissionName: f.text("missionName"),
		SensorName:  f.text("sensorName"),
		Fields:      f,
	}
	return nil
}

func (b Bookmark) MarshalJSON() ([]byte, error) {
	out := b.Fields.clone()
	out.setText("missionName", b.MissionName)
	out.setText("sensorName", b.SensorName)
	return json.Marshal(map[string]json.RawMessage(out))
}

func readFields(data []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	return f, nil
}

// decodeField decodes member key into T. ok is false when the member is
// missing or has another shape, in which case it is only carried in Fields.
func decodeField[T any](f Fields, key string) (T, bool) {
	var v T
	raw, ok := f[key]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f)+4)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// text returns a string member, or the literal JSON of any other value.
func (f Fields) text(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	return textOf(raw)
}

// setText stores s under key unless the member already reads as s.
func (f Fields) setText(key, s string) {
	raw, ok := f[key]
	if ok && textOf(raw) == s {
		return
	}
	if !ok && s == "" {
		return
	}
	quoted, _ := json.Marshal(s)
	f[key] = quoted
}

func (f Fields) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f[key] = raw
	return nil
}

func textOf(raw json.RawMessage) string {
	if isString(raw) {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	if strings.TrimSpace(string(raw)) == "null" {
		return ""
	}
	return string(raw)
}

func isString(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return len(t) > 0 && t[0] == '"'
}

// truthy reports whether raw holds a value other than null, false, 0 or "".
func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
