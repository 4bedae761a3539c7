package tui

import "github.com/JakeFAU/shotprogress/internal/progress"

// SnapshotMsg delivers a progress snapshot to the program's event loop.
type SnapshotMsg struct {
	Snapshot progress.Snapshot

	// applied is closed by Update once the snapshot is the displayed state.
	applied chan struct{}
}

func (m SnapshotMsg) ack() {
	if m.applied != nil {
		close(m.applied)
	}
}
