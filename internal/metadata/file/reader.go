// Package file reads run counters from YAML or JSON sidecar documents on the
// local filesystem.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

// Reader resolves handles as file paths, relative ones against BaseDir.
type Reader struct {
	baseDir string
}

// New constructs a Reader rooted at baseDir. An empty baseDir leaves relative
// handles relative to the process working directory.
func New(baseDir string) *Reader {
	return &Reader{baseDir: baseDir}
}

// ReadRuns opens the sidecar document named by handle and decodes its counters.
func (r *Reader) ReadRuns(ctx context.Context, handle string) (metadata.Runs, error) {
	if err := ctx.Err(); err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	if handle == "" {
		return metadata.Runs{}, fmt.Errorf("%w: empty handle", metadata.ErrUnavailable)
	}
	f, err := os.Open(r.resolve(handle))
	if err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	runs, err := metadata.DecodeAttributes(f)
	if err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	return runs, nil
}

func (r *Reader) resolve(handle string) string {
	if filepath.IsAbs(handle) || r.baseDir == "" {
		return handle
	}
	return filepath.Join(r.baseDir, handle)
}
