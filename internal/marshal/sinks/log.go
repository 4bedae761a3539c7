package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

// LogSink emits structured logs for every applied snapshot. It is useful when
// no terminal or API consumer is attached.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the renderer interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Render logs snap using structured fields.
func (s *LogSink) Render(_ context.Context, snap progress.Snapshot) error {
	fields := []zap.Field{
		zap.String("phase", string(snap.Phase)),
		zap.Bool("enabled", snap.Enabled),
		zap.Int("percent", snap.Percent),
		zap.Int("current_run", snap.CurrentRun),
		zap.Int("total_runs", snap.TotalRuns),
		zap.String("text", snap.Text),
		zap.String("run_id", snap.RunID),
		zap.String("handle", snap.Handle),
	}
	if snap.Phase == progress.PhaseError {
		s.logger.Warn("progress snapshot", append(fields, zap.String("error", snap.Err))...)
		return nil
	}
	s.logger.Info("progress snapshot", fields...)
	return nil
}

// Close implements the Renderer interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
