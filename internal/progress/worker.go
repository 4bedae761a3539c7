package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/clock/system"
	"github.com/JakeFAU/shotprogress/internal/command"
	"github.com/JakeFAU/shotprogress/internal/metadata"
	"github.com/JakeFAU/shotprogress/internal/metrics"
)

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultReadTimeout  = 5 * time.Second
)

// Reader resolves a work-item handle to its run counters.
type Reader interface {
	ReadRuns(ctx context.Context, handle string) (metadata.Runs, error)
}

// Presenter hands snapshots to the presentation loop. PushSync returns only
// after the snapshot was applied; Push may return before and reports false
// when the snapshot was dropped.
type Presenter interface {
	Push(snap Snapshot) bool
	PushSync(snap Snapshot)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls Worker behavior.
//   - TickInterval: how long the worker waits for a command while a run is
//     active before re-reading the counters (default 500ms).
//   - ReadTimeout: deadline applied to each metadata read (default 5s).
//   - Clock, IDs: optional time and run ID sources.
//   - Metrics, Logger: optional observability hooks.
type Config struct {
	TickInterval time.Duration
	ReadTimeout  time.Duration
	Clock        Clock
	IDs          IDGenerator
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// noPercent forces the next update to push regardless of the percentage.
const noPercent = -1

type runContext struct {
	handle      string
	runID       string
	lastPercent int
}

// Worker owns the progress state and transitions it in response to commands
// and ticks. All state lives on the goroutine executing Run.
type Worker struct {
	commands  *command.Channel
	reader    Reader
	presenter Presenter
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics

	state State
	run   runContext
}

// NewWorker constructs a Worker consuming commands from the channel.
func NewWorker(commands *command.Channel, reader Reader, presenter Presenter, cfg Config) *Worker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		commands:  commands,
		reader:    reader,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// Run blocks, consuming commands until a Shutdown command arrives or ctx ends.
// The bar is cleared before the first command is read. While a run is active
// the wait for a command is bounded by TickInterval.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("progress worker started", zap.Duration("tick_interval", w.cfg.TickInterval))
	defer w.logger.Info("progress worker stopped")
	w.presenter.PushSync(ClearedSnapshot(w.cfg.Clock.Now()))
	for {
		var timeout time.Duration
		if w.state.Active {
			timeout = w.cfg.TickInterval
		}
		cmd, err := w.commands.Dequeue(ctx, timeout)
		switch {
		case errors.Is(err, command.ErrEmpty):
			w.guard(ctx, "tick", w.tick)
			continue
		case err != nil:
			w.logger.Warn("progress worker aborted", zap.Error(err))
			return
		}

		w.metrics.ObserveCommand(string(cmd.Kind))
		w.logger.Debug("dequeued command", zap.Stringer("command", cmd))
		if cmd.Kind == command.KindShutdown {
			return
		}
		w.guard(ctx, string(cmd.Kind), func(ctx context.Context) error {
			return w.handle(ctx, cmd)
		})
	}
}

func (w *Worker) handle(ctx context.Context, cmd command.Command) error {
	switch cmd.Kind {
	case command.KindStart:
		return w.start(ctx, string(cmd.Handle))
	case command.KindStop:
		return w.stop(ctx, string(cmd.Handle))
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

func (w *Worker) start(ctx context.Context, handle string) error {
	if w.state.Active {
		w.metrics.ObserveUnexpectedTransition("start_while_active")
		w.logger.Warn("start received while a run is active; replacing run",
			zap.String("run_id", w.run.runID),
			zap.String("previous_handle", w.run.handle),
			zap.String("handle", handle),
		)
		w.reset()
	}

	runs, err := w.read(ctx, handle)
	if err != nil {
		w.metrics.ObserveMetadataError()
		w.logger.Error("run metadata unavailable; staying idle", zap.String("handle", handle), zap.Error(err))
		w.presenter.PushSync(ErrorSnapshot(handle, err, w.cfg.Clock.Now()))
		return nil
	}

	w.state = State{Active: true, CurrentRun: runs.Current, TotalRuns: runs.Total}
	w.run = runContext{
		handle:      handle,
		runID:       w.newRunID(),
		lastPercent: noPercent,
	}
	w.logger.Info("run started",
		zap.String("run_id", w.run.runID),
		zap.String("handle", handle),
		zap.Int("current_run", runs.Current),
		zap.Int("total_runs", runs.Total),
	)
	w.update(runs)
	return nil
}

func (w *Worker) stop(ctx context.Context, handle string) error {
	if !w.state.Active {
		w.logger.Debug("stop received while idle; ignoring", zap.String("handle", handle))
		return nil
	}
	if handle != "" && handle != w.run.handle {
		w.logger.Debug("stop handle differs from active run",
			zap.String("run_id", w.run.runID),
			zap.String("handle", handle),
			zap.String("active_handle", w.run.handle),
		)
	}

	// The work item may already be moved or locked by the host once it ended;
	// fall back to the counters seen by the last successful read.
	runs := metadata.Runs{Current: w.state.CurrentRun, Total: w.state.TotalRuns}
	if fresh, err := w.read(ctx, w.run.handle); err != nil {
		w.logger.Warn("run counters unavailable on stop; using last known counters",
			zap.String("run_id", w.run.runID),
			zap.String("handle", w.run.handle),
			zap.Int("current_run", runs.Current),
			zap.Int("total_runs", runs.Total),
			zap.Error(err),
		)
	} else {
		runs = fresh
	}
	if !runs.Last() {
		w.metrics.ObserveUnexpectedTransition("premature_stop")
		w.logger.Warn("stop before the last run; keeping run active",
			zap.String("run_id", w.run.runID),
			zap.Int("current_run", runs.Current),
			zap.Int("total_runs", runs.Total),
		)
		w.update(runs)
		return nil
	}

	w.logger.Info("run finished",
		zap.String("run_id", w.run.runID),
		zap.String("handle", w.run.handle),
		zap.Int("total_runs", runs.Total),
	)
	w.reset()
	w.presenter.PushSync(ClearedSnapshot(w.cfg.Clock.Now()))
	return nil
}

func (w *Worker) tick(ctx context.Context) error {
	if !w.state.Active {
		return nil
	}
	runs, err := w.read(ctx, w.run.handle)
	if err != nil {
		return fmt.Errorf("refresh run counters: %w", err)
	}
	w.update(runs)
	return nil
}

// update stores runs and pushes a snapshot only when the percentage moved.
// A snapshot the presenter dropped is retried on the next update.
func (w *Worker) update(runs metadata.Runs) {
	w.state.CurrentRun = runs.Current
	w.state.TotalRuns = runs.Total
	pct := Percent(runs.Current, runs.Total)
	if pct == w.run.lastPercent {
		return
	}
	w.logger.Debug("run progressed",
		zap.String("run_id", w.run.runID),
		zap.Int("current_run", runs.Current),
		zap.Int("total_runs", runs.Total),
		zap.Int("percent", pct),
	)
	if !w.presenter.Push(ProgressSnapshot(w.run.runID, w.run.handle, runs, w.cfg.Clock.Now())) {
		w.run.lastPercent = noPercent
		return
	}
	w.run.lastPercent = pct
}

func (w *Worker) read(ctx context.Context, handle string) (metadata.Runs, error) {
	readCtx, cancel := context.WithTimeout(ctx, w.cfg.ReadTimeout)
	defer cancel()
	runs, err := w.reader.ReadRuns(readCtx, handle)
	if err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	if err := runs.Validate(); err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	return runs, nil
}

// guard runs fn and converts any error or panic into a reset to idle with an
// error snapshot, so the loop keeps serving commands.
func (w *Worker) guard(ctx context.Context, op string, fn func(context.Context) error) {
	err := safely(ctx, fn)
	if err == nil {
		return
	}
	w.metrics.ObserveWorkerFault(op)
	w.logger.Error("progress worker fault; resetting to idle",
		zap.String("operation", op),
		zap.String("run_id", w.run.runID),
		zap.String("handle", w.run.handle),
		zap.Int("current_run", w.state.CurrentRun),
		zap.Int("total_runs", w.state.TotalRuns),
		zap.Error(err),
	)
	handle := w.run.handle
	w.reset()
	w.presenter.PushSync(ErrorSnapshot(handle, err, w.cfg.Clock.Now()))
}

func safely(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func (w *Worker) reset() {
	w.state = State{}
	w.run = runContext{}
}

func (w *Worker) newRunID() string {
	if w.cfg.IDs == nil {
		return ""
	}
	id, err := w.cfg.IDs.NewID()
	if err != nil {
		w.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}
