package uploader

import "fmt"

// MissionCreateError reports that the server refused to create a mission.
type MissionCreateError struct {
	Mission string
	// Body is the server's response body, if it answered.
	Body string
	Err  error
}

func (e *MissionCreateError) Error() string {
	msg := fmt.Sprintf("error creating mission %s - %v", e.Mission, e.Err)
	if e.Body != "" {
		msg += ". " + e.Body
	}
	return msg
}

func (e *MissionCreateError) Unwrap() error { return e.Err }

// SensorUploadError reports a failed sensor upload. It fails the whole
// mission.
type SensorUploadError struct {
	Mission string
	Sensor  string
	Body    string
	Err     error
}

func (e *SensorUploadError) Error() string {
	msg := fmt.Sprintf("error uploading sensor %s of mission %s - %v", e.Sensor, e.Mission, e.Err)
	if e.Body != "" {
		msg += ". " + e.Body
	}
	return msg
}

func (e *SensorUploadError) Unwrap() error { return e.Err }
