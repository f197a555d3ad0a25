package server

import (
	"errors"
	"fmt"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	// Body is the (truncated) response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %s", e.Status)
	}
	return fmt.Sprintf("server returned %s: %s", e.Status, e.Body)
}

// ConnectionError reports that the server could not be reached or rejected
// the session before any uploads started.
type ConnectionError struct {
	// Op names the endpoint that failed, e.g. "info".
	Op  string
	URL string
	// Status is the HTTP status text when the server answered.
	Status string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("error connecting to server (%s) - %v - %s", e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("error connecting to server (%s) - %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseBody returns the server's response body carried by err, or "" when
// err did not come from a non-2xx response.
func ResponseBody(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Body
	}
	return ""
}

func newConnectionError(op, url string, err error) *ConnectionError {
	ce := &ConnectionError{Op: op, URL: url, Err: err}
	var se *StatusError
	if errors.As(err, &se) {
		ce.Status = se.Status
	}
	return ce
}
