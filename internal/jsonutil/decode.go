// Package jsonutil decodes JSON response bodies and bus payloads into typed
// values, producing errors that carry a short preview of the offending text.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// previewLen bounds how much of a payload is quoted in an error.
const previewLen = 200

// Decode unmarshals data into a new T. On failure the error includes a
// truncated preview of the input for debugging.
func Decode[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, Truncate(string(data), previewLen))
	}
	return result, nil
}

// Truncate returns the first n bytes of s, appending "..." if truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
