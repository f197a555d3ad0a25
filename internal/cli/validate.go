package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/mission-uploader/internal/manifest"
	"github.com/fpang/mission-uploader/internal/s3util"
)

// ErrNoInput is returned when no manifest was named.
var ErrNoInput = errors.New("no input file given (--input)")

// ResolveInputFile checks that a local manifest exists and is a regular
// file, then returns its absolute path. S3 locations are returned as is and
// checked when they are fetched.
func ResolveInputFile(path string) (string, error) {
	if path == "" {
		return "", ErrNoInput
	}
	if s3util.IsURI(path) {
		return path, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &manifest.FileNotFoundError{Path: path, Err: err}
		}
		return "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("input %s is a directory", path)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}
