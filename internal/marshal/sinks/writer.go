package sinks

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

const defaultBarWidth = 30

// WriterSink draws a one-line text progress bar per snapshot. It is the
// console presentation used when the terminal UI is disabled.
type WriterSink struct {
	out   io.Writer
	width int
}

// NewWriterSink writes bars of the given width (default 30 cells) to out.
func NewWriterSink(out io.Writer, width int) *WriterSink {
	if width <= 0 {
		width = defaultBarWidth
	}
	return &WriterSink{out: out, width: width}
}

// Render writes a single line describing snap.
func (s *WriterSink) Render(_ context.Context, snap progress.Snapshot) error {
	if _, err := fmt.Fprintln(s.out, FormatBar(snap, s.width)); err != nil {
		return fmt.Errorf("write progress line: %w", err)
	}
	return nil
}

// Close implements the Renderer interface; it performs no action.
func (s *WriterSink) Close(context.Context) error {
	return nil
}

// FormatBar renders snap as "[#####-----] text". Disabled snapshots draw an
// empty bar.
func FormatBar(snap progress.Snapshot, width int) string {
	filled := 0
	if snap.Enabled {
		filled = snap.Percent * width / progress.BarMax
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	line := fmt.Sprintf("[%s] %s", bar, snap.Text)
	if snap.Err != "" {
		line += ": " + snap.Err
	}
	return line
}
