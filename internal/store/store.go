// Package store provides persistence for detection run history.
package store

import (
	"time"

	"github.com/caevv/autorevert/internal/detector"
)

// Store defines the interface for persisting and retrieving detection runs.
type Store interface {
	// SaveRun persists a detection run record.
	SaveRun(run *DetectionRun) error

	// GetRun retrieves a specific run by its ID.
	GetRun(runID string) (*DetectionRun, error)

	// GetRuns retrieves the most recent detection runs.
	// Returns up to 'limit' runs, ordered by StartTime descending (newest first).
	GetRuns(limit int) ([]*DetectionRun, error)

	// Close releases any resources held by the store.
	Close() error
}

// Dispatch records a workflow restart issued during a detection run.
type Dispatch struct {
	// Workflow is the workflow name the restart targeted.
	Workflow string `json:"workflow"`

	// SHA is the commit the workflow was restarted on.
	SHA string `json:"sha"`

	// DispatchedAt is when the restart was issued.
	DispatchedAt time.Time `json:"dispatched_at"`

	// DryRun indicates the dispatch was logged but not sent.
	DryRun bool `json:"dry_run,omitempty"`
}

// DetectionRun represents a single detection pass over the configured
// workflows.
type DetectionRun struct {
	// RunID is a unique identifier for this run (typically UUID).
	RunID string `json:"run_id"`

	// StartTime is when the detection pass began.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the detection pass completed (zero if still running).
	EndTime time.Time `json:"end_time,omitempty"`

	// Workflows lists the workflow names that were scanned.
	Workflows []string `json:"workflows"`

	// Branch is the branch whose history was scanned.
	Branch string `json:"branch,omitempty"`

	// LookbackHours is how far back the scan reached.
	LookbackHours int `json:"lookback_hours"`

	// CommitsScanned is the total number of commits examined.
	CommitsScanned int `json:"commits_scanned"`

	// Patterns holds the failure patterns found in this pass.
	Patterns []detector.Pattern `json:"patterns,omitempty"`

	// Reverts holds the revert commits correlated with pattern targets,
	// keyed by target SHA.
	Reverts map[string]*detector.RevertMatch `json:"reverts,omitempty"`

	// Dispatches records the workflow restarts issued for this pass.
	Dispatches []Dispatch `json:"dispatches,omitempty"`

	// Error is set when the pass failed partway through.
	Error string `json:"error,omitempty"`
}

// Duration returns the time taken for this run.
// Returns zero if the run hasn't completed yet.
func (r *DetectionRun) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// IsRunning returns true if the run has started but not completed.
func (r *DetectionRun) IsRunning() bool {
	return !r.StartTime.IsZero() && r.EndTime.IsZero()
}

// RevertedCount returns how many detected patterns were followed by a
// matching revert commit.
func (r *DetectionRun) RevertedCount() int {
	count := 0
	for _, p := range r.Patterns {
		if _, ok := r.Reverts[p.TargetSHA]; ok {
			count++
		}
	}
	return count
}
