// Package ci holds the normalized in-memory model of CI runs: per-commit
// job results with their classification, and plain commit records from the
// push history. Everything here is pure data with derived views; fetching
// lives in the history source implementations.
package ci

import (
	"regexp"
	"time"
)

// Conclusion values reported for a finished job.
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
	ConclusionSkipped   = "skipped"
)

// Status values reported for a job's lifecycle state.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusQueued    = "queued"
)

// JobResult is one job execution within one workflow run on one commit.
// Rule is the failure-classification label; it is only meaningful when
// Conclusion is "failure", and an empty Rule means the failure was not
// classified.
type JobResult struct {
	SHA          string    `json:"sha"`
	Name         string    `json:"name"`
	Conclusion   string    `json:"conclusion"`
	Status       string    `json:"status"`
	Rule         string    `json:"rule"`
	RunCreatedAt time.Time `json:"run_created_at"`
}

// CommitJobs groups every JobResult sharing one commit SHA within one
// workflow. CreatedAt is the workflow run creation time and serves as the
// commit's effective time for windowing.
type CommitJobs struct {
	SHA       string      `json:"sha"`
	CreatedAt time.Time   `json:"created_at"`
	Jobs      []JobResult `json:"jobs"`
}

// FailedJobs returns the jobs that concluded in failure and carry a
// classification rule. Unclassified failures do not participate in
// pattern matching.
func (c *CommitJobs) FailedJobs() []JobResult {
	var failed []JobResult
	for _, j := range c.Jobs {
		if j.Conclusion == ConclusionFailure && j.Rule != "" {
			failed = append(failed, j)
		}
	}
	return failed
}

// HasPendingJobs reports whether any job on this commit is still pending.
func (c *CommitJobs) HasPendingJobs() bool {
	for _, j := range c.Jobs {
		if j.Status == StatusPending {
			return true
		}
	}
	return false
}

// FailureRules returns the distinct classification rules among this
// commit's failed jobs.
func (c *CommitJobs) FailureRules() map[string]bool {
	rules := make(map[string]bool)
	for _, j := range c.FailedJobs() {
		rules[j.Rule] = true
	}
	return rules
}

// HasFailureRule reports whether any failed job on this commit carries
// the given classification rule.
func (c *CommitJobs) HasFailureRule(rule string) bool {
	for _, j := range c.Jobs {
		if j.Conclusion == ConclusionFailure && j.Rule != "" && j.Rule == rule {
			return true
		}
	}
	return false
}

// BaseJobNames returns the set of shard-normalized job names on this commit.
func (c *CommitJobs) BaseJobNames() map[string]bool {
	names := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		names[NormalizeJobName(j.Name)] = true
	}
	return names
}

// shardPattern matches the shard-index infix emitted by sharded runners,
// e.g. "linux-test (default, 1, 3, runner)" carries ", 1, 3, ".
var shardPattern = regexp.MustCompile(`, \d+, \d+, `)

// NormalizeJobName strips shard-index infixes from a job name so that
// logically-equivalent jobs split across parallel runners compare equal.
// Names without shard markers pass through unchanged.
func NormalizeJobName(name string) string {
	return shardPattern.ReplaceAllString(name, ", ")
}

// Commit is one commit on the tracked branch, used for revert-message
// matching. It is independent of any workflow job data.
type Commit struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
