package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

// PrometheusSink exports the presented bar via Prometheus. It owns collectors
// for runs started/finished/active plus the current bar position.
type PrometheusSink struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	runDuration  *prometheus.HistogramVec

	barPercent prometheus.Gauge
	currentRun prometheus.Gauge
	totalRuns  prometheus.Gauge

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shotprogress_runs_started_total",
			Help: "Total runs that were presented as active.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shotprogress_runs_finished_total",
			Help: "Total runs that left the active state partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shotprogress_runs_active",
			Help: "Whether a run is currently presented as active.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shotprogress_run_duration_seconds",
			Help:    "Wall time between the first and last snapshot of a run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"result"}),
		barPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shotprogress_bar_percent",
			Help: "Percentage currently shown on the bar.",
		}),
		currentRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shotprogress_current_run",
			Help: "Zero-based run index of the active work item.",
		}),
		totalRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shotprogress_total_runs",
			Help: "Total runs of the active work item.",
		}),
		tracker: &runTracker{},
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsFinished,
		s.runsActive,
		s.runDuration,
		s.barPercent,
		s.currentRun,
		s.totalRuns,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Render updates the Prometheus collectors from snap.
func (s *PrometheusSink) Render(_ context.Context, snap progress.Snapshot) error {
	switch snap.Phase {
	case progress.PhaseProgress:
		if s.tracker.start(snap.RunID, snap.At) {
			s.runsStarted.Inc()
			s.runsActive.Set(1)
		}
		s.barPercent.Set(float64(snap.Percent))
		s.currentRun.Set(float64(snap.CurrentRun))
		s.totalRuns.Set(float64(snap.TotalRuns))
	case progress.PhaseCleared, progress.PhaseError:
		result := "success"
		if snap.Phase == progress.PhaseError {
			result = "error"
		}
		started, wasActive := s.tracker.complete()
		// A clear without an active run (startup) finishes nothing.
		if wasActive || snap.Phase == progress.PhaseError {
			s.runsFinished.WithLabelValues(result).Inc()
		}
		if wasActive {
			s.runsActive.Set(0)
			if d := snap.At.Sub(started); d > 0 {
				s.runDuration.WithLabelValues(result).Observe(d.Seconds())
			}
		}
		s.barPercent.Set(0)
		s.currentRun.Set(0)
		s.totalRuns.Set(0)
	}
	return nil
}

// Close implements the Renderer interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// runTracker remembers the active run so its duration can be observed once it
// is cleared. Starting a different run replaces the previous one.
type runTracker struct {
	mu      sync.Mutex
	runID   string
	started time.Time
	active  bool
}

func (t *runTracker) start(runID string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active && t.runID == runID {
		return false
	}
	t.runID = runID
	t.started = at
	t.active = true
	return true
}

func (t *runTracker) complete() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return time.Time{}, false
	}
	t.active = false
	return t.started, true
}
