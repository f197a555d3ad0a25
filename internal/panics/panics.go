// Package panics carries panics out of worker goroutines as errors, so the
// command can report them the same way as a panic on the main goroutine.
package panics

import (
	"fmt"
	"runtime/debug"
)

// Error is a recovered panic.
type Error struct {
	Value any
	Stack []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Capture recovers a panic in the calling goroutine and stores it in *err.
// It must be deferred directly:
//
//	defer panics.Capture(&err)
func Capture(err *error) {
	if r := recover(); r != nil {
		*err = &Error{Value: r, Stack: debug.Stack()}
	}
}
