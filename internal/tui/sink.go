package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards snapshots to a Bubble Tea program. Render returns once
// the program's Update applied the snapshot, the program was detached, or ctx
// ended.
type ProgramSink struct {
	sender Sender

	detachOnce sync.Once
	detached   chan struct{}
}

// NewProgramSink wraps sender.
func NewProgramSink(sender Sender) *ProgramSink {
	return &ProgramSink{sender: sender, detached: make(chan struct{})}
}

// Render hands snap to the program's event loop and waits for Update to apply it.
func (s *ProgramSink) Render(ctx context.Context, snap progress.Snapshot) error {
	if s.isDetached() {
		return nil
	}
	msg := SnapshotMsg{Snapshot: snap, applied: make(chan struct{})}
	go s.sender.Send(msg)
	select {
	case <-msg.applied:
		return nil
	case <-s.detached:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminal ui render: %w", ctx.Err())
	}
}

// Detach stops forwarding to the program. Call it once the program has exited
// or when it was never started; Send would otherwise block.
func (s *ProgramSink) Detach() {
	s.detachOnce.Do(func() { close(s.detached) })
}

// Close asks the program to quit.
func (s *ProgramSink) Close(ctx context.Context) error {
	if s.isDetached() {
		return nil
	}
	sent := make(chan struct{})
	go func() {
		s.sender.Send(tea.QuitMsg{})
		close(sent)
	}()
	select {
	case <-sent:
		return nil
	case <-s.detached:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminal ui quit: %w", ctx.Err())
	}
}

func (s *ProgramSink) isDetached() bool {
	select {
	case <-s.detached:
		return true
	default:
		return false
	}
}
