package sinks

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/shotprogress/internal/metadata"
	"github.com/JakeFAU/shotprogress/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, sink.Render(ctx, progress.ProgressSnapshot("run-1", "a.h5", metadata.Runs{Current: 1, Total: 4}, time.Now())))
	require.NoError(t, sink.Render(ctx, progress.ErrorSnapshot("a.h5", errors.New("boom"), time.Now())))
	require.NoError(t, sink.Close(ctx))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, int64(25), entries[0].ContextMap()["percent"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestStateSinkTracksLatest(t *testing.T) {
	t.Parallel()

	sink := NewStateSink()
	require.Equal(t, progress.PhaseCleared, sink.Latest().Phase)
	require.Zero(t, sink.Applied())

	snap := progress.ProgressSnapshot("run-1", "a.h5", metadata.Runs{Current: 2, Total: 4}, time.Now())
	require.NoError(t, sink.Render(context.Background(), snap))
	require.Equal(t, snap, sink.Latest())
	require.Equal(t, int64(1), sink.Applied())
}

func TestFormatBar(t *testing.T) {
	t.Parallel()

	at := time.Now()
	tests := []struct {
		name string
		snap progress.Snapshot
		want string
	}{
		{
			name: "half",
			snap: progress.ProgressSnapshot("r", "a.h5", metadata.Runs{Current: 1, Total: 2}, at),
			want: "[#####-----] 50%/100%",
		},
		{
			name: "cleared",
			snap: progress.ClearedSnapshot(at),
			want: "[----------] No shot running",
		},
		{
			name: "error",
			snap: progress.ErrorSnapshot("a.h5", errors.New("no attrs"), at),
			want: "[----------] Error in progress tracker: no attrs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, FormatBar(tt.snap, 10))
		})
	}
}

func TestWriterSinkWritesLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewWriterSink(&buf, 4)
	ctx := context.Background()
	require.NoError(t, sink.Render(ctx, progress.ProgressSnapshot("r", "a.h5", metadata.Runs{Current: 3, Total: 4}, time.Now())))
	require.NoError(t, sink.Render(ctx, progress.ClearedSnapshot(time.Now())))
	require.Equal(t, "[###-] 75%/100%\n[----] No shot running\n", buf.String())
}
