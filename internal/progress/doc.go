// Package progress implements the background worker that tracks the progress
// of an externally driven run sequence. The worker is the sole owner of the
// progress state: hook callbacks feed it commands through a command.Channel,
// it re-reads run counters on a bounded tick while a run is active, and it
// hands immutable Snapshots to a Presenter that applies them on the
// presentation loop.
package progress
