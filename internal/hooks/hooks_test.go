package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFireRunsInAscendingPriority(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Callback {
		return func(context.Context, string) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	r := NewRegistry()
	require.NoError(t, r.Register(
		Registration{Name: "late", Type: WorkStarting, Priority: 200, Callback: record("late")},
		Registration{Name: "early", Type: WorkStarting, Priority: 5, Callback: record("early")},
		Registration{Name: "other", Type: WorkEnding, Priority: 1, Callback: record("other")},
		Registration{Name: "tie", Type: WorkStarting, Priority: 200, Callback: record("tie")},
	))

	results := r.Fire(context.Background(), WorkStarting, "a.h5")
	require.Len(t, results, 3)
	require.Equal(t, []string{"early", "late", "tie"}, order)
}

func TestFireIsolatesFailures(t *testing.T) {
	t.Parallel()

	var handled []Result
	r := NewRegistry()
	r.SetHandler(func(evt Type, result Result) {
		require.Equal(t, WorkEnding, evt)
		handled = append(handled, result)
	})
	var reached string
	require.NoError(t, r.Register(
		Registration{Name: "panics", Type: WorkEnding, Priority: 1, Callback: func(context.Context, string) error {
			panic("boom")
		}},
		Registration{Name: "fails", Type: WorkEnding, Priority: 2, Callback: func(context.Context, string) error {
			return errors.New("nope")
		}},
		Registration{Name: "ok", Type: WorkEnding, Priority: 3, Callback: func(_ context.Context, handle string) error {
			reached = handle
			return nil
		}},
	))

	results := r.Fire(context.Background(), WorkEnding, "b.h5")
	require.Len(t, results, 3)
	require.ErrorContains(t, results[0].Error, "callback panic")
	require.EqualError(t, results[1].Error, "nope")
	require.NoError(t, results[2].Error)
	require.Equal(t, "b.h5", reached)
	require.Len(t, handled, 3)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := func(context.Context, string) error { return nil }
	require.Error(t, r.Register(Registration{Name: "nil", Type: WorkStarting}))
	require.NoError(t, r.Register(Registration{Name: "a", Type: WorkStarting, Callback: noop}))
	require.Error(t, r.Register(Registration{Name: "a", Type: WorkStarting, Callback: noop}))
	require.NoError(t, r.Register(Registration{Name: "a", Type: WorkEnding, Callback: noop}))

	r.Unregister("a")
	require.Empty(t, r.Registrations())
	require.Empty(t, r.Fire(context.Background(), WorkStarting, "x"))
}
