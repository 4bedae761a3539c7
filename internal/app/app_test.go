package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/config"
	"github.com/JakeFAU/shotprogress/internal/progress"
)

func testConfig() config.Config {
	return config.Config{
		Worker:   config.WorkerConfig{TickInterval: 5 * time.Millisecond, ReadTimeout: time.Second},
		Marshal:  config.MarshalConfig{BufferSize: 16, SinkTimeout: time.Second},
		Hooks:    config.HooksConfig{StartingPriority: 200, EndingPriority: 5},
		Metadata: config.MetadataConfig{Backend: config.BackendMemory},
		Console:  config.ConsoleConfig{Enabled: true, Width: 10},
	}
}

// TestAppEndToEnd drives a two-run work item through the HTTP host surface.
func TestAppEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var out bytes.Buffer
	a, err := build(ctx, testConfig(), zap.NewNop(), &out)
	require.NoError(t, err)

	h := a.Handler()
	require.Equal(t, http.StatusServiceUnavailable, call(h, http.MethodGet, "/readyz", "").Code)
	require.NoError(t, a.plugin.Setup(ctx))
	require.Equal(t, http.StatusOK, call(h, http.MethodGet, "/readyz", "").Code)

	rec := call(h, http.MethodPut, "/v1/work-items", `{"handle":"seq.h5","current_run":0,"total_runs":2}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(h, http.MethodPost, "/v1/work/starting", `{"handle":"seq.h5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitForPhase(t, h, progress.PhaseProgress, 0)

	// A premature end keeps the run active.
	call(h, http.MethodPost, "/v1/work/ending", `{"handle":"seq.h5"}`)
	require.Eventually(t, func() bool {
		body := call(h, http.MethodGet, "/metrics", "").Body.String()
		return strings.Contains(body, `shotprogress_unexpected_transitions_total{reason="premature_stop"} 1`)
	}, 2*time.Second, 2*time.Millisecond)
	call(h, http.MethodPut, "/v1/work-items", `{"handle":"seq.h5","current_run":1,"total_runs":2}`)
	waitForPhase(t, h, progress.PhaseProgress, 50)

	call(h, http.MethodPost, "/v1/work/ending", `{"handle":"seq.h5"}`)
	waitForPhase(t, h, progress.PhaseCleared, 0)

	rec = call(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "shotprogress_runs_finished_total")

	require.NoError(t, a.Close(ctx))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"[----------] No shot running",
		"[----------] 0%/100%",
		"[#####-----] 50%/100%",
		"[----------] No shot running",
	}, lines)
}

func TestAppStartWithUnknownHandle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var out bytes.Buffer
	a, err := build(ctx, testConfig(), zap.NewNop(), &out)
	require.NoError(t, err)
	require.NoError(t, a.plugin.Setup(ctx))

	call(a.Handler(), http.MethodPost, "/v1/work/starting", `{"handle":"ghost.h5"}`)
	waitForPhase(t, a.Handler(), progress.PhaseError, 0)
	require.NoError(t, a.Close(ctx))
	require.Contains(t, out.String(), progress.ErrorText)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Console.Enabled = false
	a, err := build(context.Background(), cfg, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.plugin.Running, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.False(t, a.plugin.Running())
}

func TestAppCloseWithoutRunningTerminalUI(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Console.Enabled = false
	cfg.TUI.Enabled = true
	a, err := build(context.Background(), cfg, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, a.tuiSink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, a.Close(ctx))
	require.Less(t, time.Since(start), time.Second)
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitForPhase(t *testing.T, h http.Handler, phase progress.Phase, percent int) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := call(h, http.MethodGet, "/v1/progress", "")
		var body struct {
			Snapshot progress.Snapshot `json:"snapshot"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			return false
		}
		return body.Snapshot.Phase == phase && body.Snapshot.Percent == percent
	}, 2*time.Second, 2*time.Millisecond)
}
