// Package gcs reads run counters from sidecar documents stored in Google Cloud
// Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

// Config captures the bucket used for handles that are not gs:// URIs.
type Config struct {
	Bucket string
}

type objectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Reader resolves handles either as gs://bucket/object URIs or as object names
// inside the configured bucket.
type Reader struct {
	open   objectOpener
	bucket string
}

// New creates a Cloud Storage backed reader.
func New(client *storage.Client, cfg Config) (*Reader, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	open := func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(object).NewReader(ctx)
	}
	return newWithOpener(open, cfg), nil
}

func newWithOpener(open objectOpener, cfg Config) *Reader {
	return &Reader{open: open, bucket: cfg.Bucket}
}

// ReadRuns downloads the sidecar object and decodes its counters.
func (r *Reader) ReadRuns(ctx context.Context, handle string) (metadata.Runs, error) {
	bucket, object, err := r.locate(handle)
	if err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	rc, err := r.open(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return metadata.Runs{}, fmt.Errorf("%w: gs://%s/%s does not exist", metadata.ErrUnavailable, bucket, object)
		}
		return metadata.Runs{}, metadata.Unavailable(handle, fmt.Errorf("open object: %w", err))
	}
	defer rc.Close() //nolint:errcheck // read-only stream

	runs, err := metadata.DecodeAttributes(rc)
	if err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	return runs, nil
}

func (r *Reader) locate(handle string) (string, string, error) {
	if rest, ok := strings.CutPrefix(handle, "gs://"); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found || bucket == "" || object == "" {
			return "", "", fmt.Errorf("malformed object uri %q", handle)
		}
		return bucket, object, nil
	}
	if r.bucket == "" {
		return "", "", fmt.Errorf("no bucket configured for relative handle %q", handle)
	}
	object := strings.TrimPrefix(handle, "/")
	if object == "" {
		return "", "", fmt.Errorf("empty object name")
	}
	return r.bucket, object, nil
}
