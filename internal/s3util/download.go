// Package s3util fetches manifests stored in S3 so they can be loaded like
// local files.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// Scheme is the URI prefix that marks a manifest location as an S3 object.
const Scheme = "s3://"

// GetObjectAPI is the subset of the S3 client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IsURI reports whether location names an S3 object.
func IsURI(location string) bool {
	return strings.HasPrefix(location, Scheme)
}

// ParseURI splits s3://bucket/key into its bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("not an S3 URI: %s", uri)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("S3 URI must be s3://bucket/key: %s", uri)
	}
	return bucket, key, nil
}

// NewClient builds an S3 client from the default AWS credential chain.
func NewClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return s3.NewFromConfig(cfg), nil
}

// IsNotFound reports whether err means the bucket or key does not exist.
func IsNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	return errors.As(err, &noKey) || errors.As(err, &noBucket)
}

// DownloadToTempFile downloads an S3 object to a new temporary file and returns
// the file path plus a cleanup function that removes it. The temp file keeps
// the key's extension so compressed manifests are still recognised.
func DownloadToTempFile(ctx context.Context, client GetObjectAPI, bucket, key string) (string, func(), error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	tmpFile, err := os.CreateTemp("", "manifest-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	if _, err := io.Copy(tmpFile, result.Body); err != nil {
		tmpFile.Close()
		cleanup()
		return "", nil, fmt.Errorf("download: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return tmpFile.Name(), cleanup, nil
}
