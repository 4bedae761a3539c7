package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

// StateSink remembers the most recently applied snapshot so that readers on
// other goroutines (the HTTP API) can observe the presentation state.
type StateSink struct {
	mu      sync.RWMutex
	latest  progress.Snapshot
	applied int64
}

// NewStateSink starts in the cleared state.
func NewStateSink() *StateSink {
	return &StateSink{latest: progress.ClearedSnapshot(time.Time{})}
}

// Render stores snap as the latest snapshot.
func (s *StateSink) Render(_ context.Context, snap progress.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	s.applied++
	return nil
}

// Latest returns the last applied snapshot.
func (s *StateSink) Latest() progress.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Applied returns how many snapshots were rendered so far.
func (s *StateSink) Applied() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

// Close implements the Renderer interface; it performs no action.
func (s *StateSink) Close(context.Context) error {
	return nil
}
