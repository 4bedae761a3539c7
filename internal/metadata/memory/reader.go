// Package memory keeps run counters in process memory. Hosts that learn the
// counters out of band (for example over the HTTP API) record them here.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

// Reader is a concurrency-safe table of counters keyed by handle.
type Reader struct {
	mu   sync.RWMutex
	runs map[string]metadata.Runs
}

// New constructs an empty Reader.
func New() *Reader {
	return &Reader{runs: make(map[string]metadata.Runs)}
}

// Set records (or replaces) the counters for handle.
func (r *Reader) Set(handle string, runs metadata.Runs) error {
	if handle == "" {
		return fmt.Errorf("handle is required")
	}
	if err := runs.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[handle] = runs
	return nil
}

// Delete forgets handle.
func (r *Reader) Delete(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, handle)
}

// ReadRuns returns the counters recorded for handle.
func (r *Reader) ReadRuns(ctx context.Context, handle string) (metadata.Runs, error) {
	if err := ctx.Err(); err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	r.mu.RLock()
	runs, ok := r.runs[handle]
	r.mu.RUnlock()
	if !ok {
		return metadata.Runs{}, fmt.Errorf("%w: handle %q not registered", metadata.ErrUnavailable, handle)
	}
	return runs, nil
}
