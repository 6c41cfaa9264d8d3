package tui

import (
	"log/slog"
	"time"

	"github.com/caevv/autorevert/internal/store"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// Model holds the state for the TUI.
type Model struct {
	store  store.Store
	logger *slog.Logger

	// UI state
	viewMode     ViewMode
	runs         []*store.DetectionRun
	selectedRun  int
	detailRun    *store.DetectionRun
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	errorMessage string

	// Stats
	totalRuns        int
	totalPatterns    int
	revertedPatterns int
	totalDispatches  int
}

// RunStatus classifies a detection run for display.
type RunStatus int

const (
	RunStatusClean RunStatus = iota // no patterns found
	RunStatusPatterns
	RunStatusError
	RunStatusRunning
)

// statusOf classifies a run for the list view.
func statusOf(run *store.DetectionRun) RunStatus {
	switch {
	case run.IsRunning():
		return RunStatusRunning
	case run.Error != "":
		return RunStatusError
	case len(run.Patterns) > 0:
		return RunStatusPatterns
	default:
		return RunStatusClean
	}
}

// New creates a new TUI model.
func New(st store.Store, logger *slog.Logger) Model {
	return Model{
		store:      st,
		logger:     logger,
		runs:       []*store.DetectionRun{},
		lastUpdate: time.Now(),
	}
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// tickMsg is sent on a regular interval to refresh the UI.
type tickMsg time.Time

// tickCmd returns a command that sends a tick message every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData loads the latest detection runs from the store.
func (m *Model) refreshData() {
	runs, err := m.store.GetRuns(50)
	if err != nil {
		m.errorMessage = err.Error()
		return
	}

	m.errorMessage = ""
	m.runs = runs
	m.totalRuns = len(runs)
	m.totalPatterns = 0
	m.revertedPatterns = 0
	m.totalDispatches = 0
	for _, run := range runs {
		m.totalPatterns += len(run.Patterns)
		m.revertedPatterns += run.RevertedCount()
		m.totalDispatches += len(run.Dispatches)
	}

	if m.selectedRun >= len(m.runs) && len(m.runs) > 0 {
		m.selectedRun = len(m.runs) - 1
	}

	// Keep the detail view tracking its run across refreshes
	if m.viewMode == ViewModeDetail && m.detailRun != nil {
		if updated, err := m.store.GetRun(m.detailRun.RunID); err == nil {
			m.detailRun = updated
		}
	}

	m.lastUpdate = time.Now()
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
