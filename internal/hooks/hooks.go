// Package hooks is the host-side callback registry. Work lifecycle events are
// dispatched to registered callbacks in ascending priority order.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Type represents when a callback should be triggered.
type Type string

const (
	// WorkStarting fires when the host begins executing a work item.
	WorkStarting Type = "work_starting"
	// WorkEnding fires when the host finished one run of a work item.
	WorkEnding Type = "work_ending"
)

// Callback receives the handle of the work item an event refers to.
type Callback func(ctx context.Context, handle string) error

// Registration binds a callback to an event type.
type Registration struct {
	Name     string
	Type     Type
	Priority int
	Callback Callback
}

// Result describes a single callback invocation.
type Result struct {
	Name    string
	Error   error
	Elapsed time.Duration
}

// Handler is called after every callback invocation.
type Handler func(evt Type, result Result)

// Registry holds callbacks and fires them. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	regs    []Registration
	handler Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetHandler sets the result handler.
func (r *Registry) SetHandler(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Register adds regs. Names must be unique per event type.
func (r *Registry) Register(regs ...Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range regs {
		if reg.Callback == nil {
			return fmt.Errorf("register %q: nil callback", reg.Name)
		}
		for _, existing := range r.regs {
			if existing.Type == reg.Type && existing.Name == reg.Name {
				return fmt.Errorf("register %q: already registered for %s", reg.Name, reg.Type)
			}
		}
		r.regs = append(r.regs, reg)
	}
	// Stable so equal priorities keep registration order.
	sort.SliceStable(r.regs, func(i, j int) bool {
		return r.regs[i].Priority < r.regs[j].Priority
	})
	return nil
}

// Unregister removes every registration with the given name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.regs[:0]
	for _, reg := range r.regs {
		if reg.Name != name {
			kept = append(kept, reg)
		}
	}
	r.regs = kept
}

// Registrations returns a copy of the registrations in firing order.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Registration(nil), r.regs...)
}

// Fire runs every callback registered for evt in ascending priority. A failing
// or panicking callback does not prevent the remaining ones from running.
func (r *Registry) Fire(ctx context.Context, evt Type, handle string) []Result {
	r.mu.RLock()
	regs := append([]Registration(nil), r.regs...)
	handler := r.handler
	r.mu.RUnlock()

	var results []Result
	for _, reg := range regs {
		if reg.Type != evt {
			continue
		}
		start := time.Now()
		err := invoke(ctx, reg.Callback, handle)
		result := Result{Name: reg.Name, Error: err, Elapsed: time.Since(start)}
		results = append(results, result)
		if handler != nil {
			handler(evt, result)
		}
	}
	return results
}

func invoke(ctx context.Context, cb Callback, handle string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panic: %v", rec)
		}
	}()
	return cb(ctx, handle)
}
