// Package manifest loads the list of missions to upload from a JSON array or
// a CSV table. Manifests may live on local disk or in S3 and may be gzip or
// zstd compressed.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/mission"
	"github.com/fpang/mission-uploader/internal/s3util"
)

// Loader reads manifests. The zero value loads local files and creates an S3
// client on first use of an s3:// location.
type Loader struct {
	S3 s3util.GetObjectAPI
}

// Load reads and parses the manifest at location. Missions are returned in
// manifest order, which is also the upload order.
func Load(ctx context.Context, location string) ([]mission.Mission, error) {
	var l Loader
	return l.Load(ctx, location)
}

// Load reads and parses the manifest at location.
func (l *Loader) Load(ctx context.Context, location string) ([]mission.Mission, error) {
	path := location
	if s3util.IsURI(location) {
		local, cleanup, err := l.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = local
	}

	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: location, Err: err}
		}
		return nil, fmt.Errorf("read %s: %w", location, err)
	}

	res, err := Parse(location, data)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("manifest", location).
		Str("format", string(res.Format)).
		Int("missions", len(res.Missions)).
		Msg("Manifest loaded")
	return res.Missions, nil
}

func (l *Loader) fetch(ctx context.Context, uri string) (string, func(), error) {
	bucket, key, err := s3util.ParseURI(uri)
	if err != nil {
		return "", nil, err
	}
	if l.S3 == nil {
		client, err := s3util.NewClient(ctx)
		if err != nil {
			return "", nil, err
		}
		l.S3 = client
	}

	local, cleanup, err := s3util.DownloadToTempFile(ctx, l.S3, bucket, key)
	if err != nil {
		if s3util.IsNotFound(err) {
			return "", nil, &FileNotFoundError{Path: uri, Err: err}
		}
		return "", nil, err
	}
	return local, cleanup, nil
}

// readFile reads path, decompressing .gz and .zst files.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	return io.ReadAll(r)
}
