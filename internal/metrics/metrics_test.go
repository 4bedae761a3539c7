package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveCommand("start")
	m.ObserveCommand("start")
	m.ObserveCommand("stop")
	m.ObserveUnexpectedTransition("premature_stop")
	m.ObserveMetadataError()
	m.ObserveWorkerFault("tick")
	m.ObserveSnapshot("progress")
	m.ObserveSnapshotDropped()
	m.ObserveRenderFailure()

	require.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("start")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("stop")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.unexpectedTransitions.WithLabelValues("premature_stop")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metadataErrorsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.workerFaultsTotal.WithLabelValues("tick")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.snapshotsTotal.WithLabelValues("progress")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.snapshotsDropped))
	require.Equal(t, 1.0, testutil.ToFloat64(m.renderFailuresTotal))
}

func TestMetricsDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.ErrorContains(t, err, "register metrics collector")
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveCommand("start")
		m.ObserveUnexpectedTransition("x")
		m.ObserveMetadataError()
		m.ObserveWorkerFault("x")
		m.ObserveSnapshot("x")
		m.ObserveSnapshotDropped()
		m.ObserveRenderFailure()
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ObserveCommand("shutdown")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `shotprogress_commands_total{kind="shutdown"} 1`)
}
