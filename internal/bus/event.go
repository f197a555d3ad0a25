package bus

import (
	"encoding/json"
	"strings"

	"github.com/fpang/mission-uploader/internal/jsonutil"
)

// Topic suffixes that carry processing notifications.
const (
	TopicMissions      = "missions"
	TopicMissionUpdate = "mission_update"
)

// Event is one processing notification received from the server.
type Event struct {
	// Topic is the full bus topic the event arrived on.
	Topic string `json:"-"`

	Type       string          `json:"type,omitempty"`
	QueueEmpty bool            `json:"queueEmpty,omitempty"`
	Message    string          `json:"message,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// Classify inspects the last segment of topic (case-insensitive) and decodes
// payload when the topic carries processing notifications. ok is false for
// every other topic; err is set only for malformed payloads on relevant
// topics.
func Classify(topic string, payload []byte) (ev Event, ok bool, err error) {
	suffix := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		suffix = topic[i+1:]
	}

	switch strings.ToLower(suffix) {
	case TopicMissions, TopicMissionUpdate:
	default:
		return Event{}, false, nil
	}

	ev, err = jsonutil.Decode[Event](payload)
	if err != nil {
		return Event{}, false, err
	}
	ev.Topic = topic
	return ev, true, nil
}
