// Package metadata resolves opaque work-item handles to run counters. The
// subpackages provide readers for sidecar files, Postgres rows, Cloud Storage
// objects and an in-memory table.
package metadata

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks every failure to turn a handle into run counters.
var ErrUnavailable = errors.New("run metadata unavailable")

// Runs is the position of a work item inside its run sequence.
type Runs struct {
	// Current is the zero-based index of the run.
	Current int
	// Total is the number of runs in the sequence.
	Total int
}

// Validate checks that Current lies in [0, Total).
func (r Runs) Validate() error {
	if r.Total <= 0 {
		return fmt.Errorf("%w: total runs %d must be > 0", ErrUnavailable, r.Total)
	}
	if r.Current < 0 || r.Current >= r.Total {
		return fmt.Errorf("%w: run number %d outside [0, %d)", ErrUnavailable, r.Current, r.Total)
	}
	return nil
}

// Last reports whether this is the final run of the sequence.
func (r Runs) Last() bool {
	return r.Current == r.Total-1
}

// Reader yields run counters for a handle.
type Reader interface {
	ReadRuns(ctx context.Context, handle string) (Runs, error)
}

// Unavailable wraps err so callers can match it with errors.Is(err, ErrUnavailable).
func Unavailable(handle string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: handle %q: %w", ErrUnavailable, handle, err)
}
