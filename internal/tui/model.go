// Package tui renders the progress bar in a terminal using Bubble Tea. The
// program's event loop is the single presentation thread; snapshots reach it
// as messages.
package tui

import (
	"fmt"
	"strings"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

const (
	defaultWidth = 40
	padding      = 4
)

// Model is the Bubble Tea model for the progress display.
type Model struct {
	title    string
	bar      bar.Model
	snap     progress.Snapshot
	quitting bool
}

// NewModel creates a model showing the cleared bar.
func NewModel(title string, width int) Model {
	if width <= 0 {
		width = defaultWidth
	}
	return Model{
		title: title,
		bar:   bar.New(bar.WithDefaultGradient(), bar.WithoutPercentage(), bar.WithWidth(width)),
		snap:  progress.ClearedSnapshot(time.Time{}),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if w := msg.Width - padding*2; w > 0 {
			m.bar.Width = w
		}
	case SnapshotMsg:
		m.snap = msg.Snapshot
		msg.ack()
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n")

	pad := strings.Repeat(" ", padding)
	fraction := 0.0
	if m.snap.Enabled {
		fraction = float64(m.snap.Percent) / float64(progress.BarMax)
	}
	b.WriteString(pad + m.bar.ViewAs(fraction) + "\n")
	b.WriteString(pad + m.statusLine() + "\n\n")
	b.WriteString(pad + helpStyle.Render("[q] quit") + "\n")
	return b.String()
}

func (m Model) statusLine() string {
	switch m.snap.Phase {
	case progress.PhaseProgress:
		line := m.snap.Text
		if m.snap.Handle != "" {
			line = fmt.Sprintf("%s  run %d/%d  %s", line, m.snap.CurrentRun+1, m.snap.TotalRuns, m.snap.Handle)
		}
		return activeStyle.Render(line)
	case progress.PhaseError:
		line := m.snap.Text
		if m.snap.Err != "" {
			line += ": " + m.snap.Err
		}
		return errorStyle.Render(line)
	default:
		return idleStyle.Render(m.snap.Text)
	}
}

// Snapshot returns the snapshot currently displayed.
func (m Model) Snapshot() progress.Snapshot {
	return m.snap
}
