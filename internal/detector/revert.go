package detector

import (
	"context"
	"strings"
	"time"

	"github.com/caevv/autorevert/internal/ci"
)

const (
	revertPrefix = `Revert "`
	revertMarker = "This reverts commit"
)

// RevertMatch describes the commit that reverted a target commit.
type RevertMatch struct {
	SHA              string    `json:"sha"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	HoursAfterTarget float64   `json:"hours_after_target"`
}

// IsRevertCommit reports whether a commit message declares a revert:
// it must start with the `Revert "` prefix and contain the
// "This reverts commit" marker.
func IsRevertCommit(message string) bool {
	return strings.HasPrefix(message, revertPrefix) && strings.Contains(message, revertMarker)
}

// RevertCommits returns every revert commit in the branch history window.
func (c *Checker) RevertCommits(ctx context.Context) ([]ci.Commit, error) {
	history, err := c.CommitHistory(ctx)
	if err != nil {
		return nil, err
	}

	var reverts []ci.Commit
	for _, commit := range history {
		if IsRevertCommit(commit.Message) {
			reverts = append(reverts, commit)
		}
	}
	return reverts, nil
}

// IsCommitReverted reports whether the given commit was later reverted
// within the history window. A commit qualifies as the revert only when its
// message starts with `Revert "` and contains the literal
// "This reverts commit <sha>" with the full, case-sensitive SHA.
//
// Candidates are scanned in the order the history source supplies them
// (newest-first); when several reverts reference the same SHA the first
// match in that order wins. Returns nil when the target is unknown or no
// revert is found.
func (c *Checker) IsCommitReverted(ctx context.Context, targetSHA string) (*RevertMatch, error) {
	history, err := c.CommitHistory(ctx)
	if err != nil {
		return nil, err
	}

	var targetTime time.Time
	for _, commit := range history {
		if commit.SHA == targetSHA {
			targetTime = commit.Timestamp
			break
		}
	}
	if targetTime.IsZero() {
		return nil, nil // target not in window
	}

	marker := revertMarker + " " + targetSHA
	for _, commit := range history {
		if !commit.Timestamp.After(targetTime) {
			continue
		}
		if strings.HasPrefix(commit.Message, revertPrefix) && strings.Contains(commit.Message, marker) {
			return &RevertMatch{
				SHA:              commit.SHA,
				Message:          commit.Message,
				Timestamp:        commit.Timestamp,
				HoursAfterTarget: commit.Timestamp.Sub(targetTime).Hours(),
			}, nil
		}
	}

	return nil, nil
}
