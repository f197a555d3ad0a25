package manifest

import (
	"fmt"
	"strings"
)

// FileNotFoundError reports a manifest location that does not exist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("could not find %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// FormatAttempt records why one format detector rejected the manifest.
type FormatAttempt struct {
	Format Format
	Err    error
}

// UnknownFormatError reports a manifest that no detector could parse.
type UnknownFormatError struct {
	Path     string
	Attempts []FormatAttempt
}

func (e *UnknownFormatError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %v", a.Format, a.Err))
	}
	return fmt.Sprintf("unknown file format: %s (%s)", e.Path, strings.Join(reasons, "; "))
}

func (e *UnknownFormatError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
