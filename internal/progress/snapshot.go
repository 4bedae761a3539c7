package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

// BarMax is the value of a full progress bar.
const BarMax = 100

// Texts shown by presentation layers for the non-progress phases.
const (
	ClearedText = "No shot running"
	ErrorText   = "Error in progress tracker"
)

// Phase classifies a Snapshot.
type Phase string

// Snapshot phases.
const (
	PhaseProgress Phase = "progress"
	PhaseCleared  Phase = "cleared"
	PhaseError    Phase = "error"
)

// State is the worker-owned progress state. Counters are meaningful only while
// Active is true.
type State struct {
	Active     bool
	CurrentRun int
	TotalRuns  int
}

// Snapshot is an immutable rendering of State handed to the presentation loop.
type Snapshot struct {
	Phase      Phase     `json:"phase"`
	Enabled    bool      `json:"enabled"`
	Percent    int       `json:"percent"`
	CurrentRun int       `json:"current_run"`
	TotalRuns  int       `json:"total_runs"`
	Text       string    `json:"text"`
	RunID      string    `json:"run_id,omitempty"`
	Handle     string    `json:"handle,omitempty"`
	Err        string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Percent maps the run position onto [0, BarMax], rounding half away from zero.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	value := int(math.Round(float64(current) / float64(total) * BarMax))
	switch {
	case value < 0:
		return 0
	case value > BarMax:
		return BarMax
	default:
		return value
	}
}

// ProgressSnapshot renders an active run.
func ProgressSnapshot(runID, handle string, runs metadata.Runs, at time.Time) Snapshot {
	pct := Percent(runs.Current, runs.Total)
	return Snapshot{
		Phase:      PhaseProgress,
		Enabled:    true,
		Percent:    pct,
		CurrentRun: runs.Current,
		TotalRuns:  runs.Total,
		Text:       fmt.Sprintf("%d%%/%d%%", pct, BarMax),
		RunID:      runID,
		Handle:     handle,
		At:         at,
	}
}

// ClearedSnapshot renders the idle bar.
func ClearedSnapshot(at time.Time) Snapshot {
	return Snapshot{
		Phase: PhaseCleared,
		Text:  ClearedText,
		At:    at,
	}
}

// ErrorSnapshot renders a disabled bar carrying an error indicator.
func ErrorSnapshot(handle string, err error, at time.Time) Snapshot {
	snap := Snapshot{
		Phase:  PhaseError,
		Text:   ErrorText,
		Handle: handle,
		At:     at,
	}
	if err != nil {
		snap.Err = err.Error()
	}
	return snap
}
