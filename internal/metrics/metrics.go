// Package metrics exposes Prometheus collectors for the progress worker and the
// presentation marshal.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the worker, marshal and HTTP collectors. A nil *Metrics is valid and
// records nothing, which keeps tests and optional wiring simple.
type Metrics struct {
	commandsTotal         *prometheus.CounterVec
	unexpectedTransitions *prometheus.CounterVec
	metadataErrorsTotal   prometheus.Counter
	workerFaultsTotal     *prometheus.CounterVec
	snapshotsTotal        *prometheus.CounterVec
	snapshotsDropped      prometheus.Counter
	renderFailuresTotal   prometheus.Counter
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
}

// New registers the collectors against reg (the default registerer when nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_commands_total",
			Help: "Lifecycle commands consumed by the progress worker, labeled by kind.",
		}, []string{"kind"}),
		unexpectedTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_unexpected_transitions_total",
			Help: "Commands that did not match the worker state, labeled by reason.",
		}, []string{"reason"}),
		metadataErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shotprogress_metadata_errors_total",
			Help: "Start commands aborted because run metadata was unavailable.",
		}),
		workerFaultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_worker_faults_total",
			Help: "Failures recovered at the worker loop boundary, labeled by operation.",
		}, []string{"operation"}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_snapshots_total",
			Help: "Snapshots applied on the presentation loop, labeled by phase.",
		}, []string{"phase"}),
		snapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shotprogress_snapshots_dropped_total",
			Help: "Non-blocking snapshot pushes dropped due to backpressure.",
		}),
		renderFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shotprogress_render_failures_total",
			Help: "Renderer errors or panics swallowed by the presentation loop.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_http_requests_total",
			Help: "HTTP requests served, labeled by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shotprogress_http_request_duration_seconds",
			Help:    "HTTP request latency, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{
		m.commandsTotal,
		m.unexpectedTransitions,
		m.metadataErrorsTotal,
		m.workerFaultsTotal,
		m.snapshotsTotal,
		m.snapshotsDropped,
		m.renderFailuresTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return m, nil
}

// Handler returns an http.Handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveCommand counts a consumed command.
func (m *Metrics) ObserveCommand(kind string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(kind).Inc()
}

// ObserveUnexpectedTransition counts a command that did not fit the state.
func (m *Metrics) ObserveUnexpectedTransition(reason string) {
	if m == nil {
		return
	}
	m.unexpectedTransitions.WithLabelValues(reason).Inc()
}

// ObserveMetadataError counts a Start aborted by a metadata failure.
func (m *Metrics) ObserveMetadataError() {
	if m == nil {
		return
	}
	m.metadataErrorsTotal.Inc()
}

// ObserveWorkerFault counts a recovered worker failure.
func (m *Metrics) ObserveWorkerFault(operation string) {
	if m == nil {
		return
	}
	m.workerFaultsTotal.WithLabelValues(operation).Inc()
}

// ObserveSnapshot counts a snapshot applied by the presentation loop.
func (m *Metrics) ObserveSnapshot(phase string) {
	if m == nil {
		return
	}
	m.snapshotsTotal.WithLabelValues(phase).Inc()
}

// ObserveSnapshotDropped counts a dropped non-blocking push.
func (m *Metrics) ObserveSnapshotDropped() {
	if m == nil {
		return
	}
	m.snapshotsDropped.Inc()
}

// ObserveRenderFailure counts a swallowed renderer failure.
func (m *Metrics) ObserveRenderFailure() {
	if m == nil {
		return
	}
	m.renderFailuresTotal.Inc()
}
