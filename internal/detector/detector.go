// Package detector implements autorevert-pattern detection over CI job
// history: it scans per-commit job outcomes for failures that are absent in
// a lookback window, present on a target commit, and persist into a
// lookahead window, then cross-references candidates against actual revert
// commits on the tracked branch.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/caevv/autorevert/internal/ci"
)

// HistorySource supplies ordered commit and job data for the tracked branch.
// Implementations must return workflow commits sorted newest-first, with
// every job outcome for every included commit, and must be deterministic
// for a fixed window.
type HistorySource interface {
	// WorkflowCommits returns, per workflow, the commits with job data whose
	// runs were created at or after since, sorted newest-first.
	WorkflowCommits(ctx context.Context, workflows []string, branch string, since time.Time) (map[string][]ci.CommitJobs, error)

	// CommitHistory returns the branch's commits whose timestamps are at or
	// after since, sorted newest-first.
	CommitHistory(ctx context.Context, branch string, since time.Time) ([]ci.Commit, error)
}

// WorkflowRule pairs a workflow with the failure rule it flagged.
type WorkflowRule struct {
	Workflow string `json:"workflow"`
	Rule     string `json:"rule"`
}

// Pattern is one emergent-failure finding: a failure rule that first
// appears on TargetSHA and persists into the lookahead window.
type Pattern struct {
	Workflow         string    `json:"workflow"`
	Rule             string    `json:"rule"`
	TargetSHA        string    `json:"target_sha"`
	TargetTime       time.Time `json:"target_time"`
	LookaheadSHAs    []string  `json:"lookahead_shas"`
	FailedJobNames   []string  `json:"failed_job_names"`
	LookbackChecked  int       `json:"lookback_checked"`
	LookaheadChecked int       `json:"lookahead_checked"`

	// AdditionalWorkflows lists other workflows that independently flagged
	// the same target commit; populated by Detect during deduplication.
	AdditionalWorkflows []WorkflowRule `json:"additional_workflows,omitempty"`
}

// Config carries the explicit settings for a Checker. The checker never
// reads ambient environment state.
type Config struct {
	// Workflows to analyze, in priority order: when several workflows flag
	// the same target commit, the first-configured workflow keeps the
	// canonical pattern.
	Workflows []string

	// Branch is the tracked branch, e.g. "main".
	Branch string

	// LookbackHours bounds how far back commit and job data is fetched.
	LookbackHours int

	// WindowHours is the lookback/lookahead window around a target commit.
	// Defaults to 8.
	WindowHours int
}

// Checker detects autorevert patterns. Data fetched per workflow is cached
// for the lifetime of the instance; construct a new Checker to see fresh
// data.
type Checker struct {
	source HistorySource
	logger *slog.Logger

	workflows     []string
	branch        string
	lookbackHours int
	window        time.Duration

	commits        map[string][]ci.CommitJobs
	commitsFetched bool
	history        []ci.Commit
	historyFetched bool
}

// New creates a Checker over the given history source.
func New(source HistorySource, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 48
	}
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = 8
	}
	return &Checker{
		source:        source,
		logger:        logger,
		workflows:     cfg.Workflows,
		branch:        cfg.Branch,
		lookbackHours: cfg.LookbackHours,
		window:        time.Duration(cfg.WindowHours) * time.Hour,
		commits:       make(map[string][]ci.CommitJobs),
	}
}

// Workflows returns the configured workflows in priority order.
func (c *Checker) Workflows() []string {
	return c.workflows
}

// WorkflowCommits returns the cached commits for one workflow, fetching all
// configured workflows in a single batch on first use.
func (c *Checker) WorkflowCommits(ctx context.Context, workflow string) ([]ci.CommitJobs, error) {
	if !c.commitsFetched {
		if err := c.fetchWorkflowData(ctx); err != nil {
			return nil, err
		}
	}
	return c.commits[workflow], nil
}

func (c *Checker) fetchWorkflowData(ctx context.Context) error {
	if len(c.workflows) == 0 {
		c.commitsFetched = true
		return nil
	}

	since := time.Now().Add(-time.Duration(c.lookbackHours) * time.Hour)
	c.logger.Debug("fetching workflow data",
		"workflows", len(c.workflows),
		"branch", c.branch,
		"since", since)

	commits, err := c.source.WorkflowCommits(ctx, c.workflows, c.branch, since)
	if err != nil {
		return fmt.Errorf("fetch workflow commits: %w", err)
	}

	for workflow, list := range commits {
		c.commits[workflow] = list
	}
	// Workflows with no data still get an entry so later lookups miss the
	// source, not the cache.
	for _, workflow := range c.workflows {
		if _, ok := c.commits[workflow]; !ok {
			c.commits[workflow] = nil
		}
		c.logger.Debug("workflow commits fetched",
			"workflow", workflow,
			"commits", len(c.commits[workflow]))
	}
	c.commitsFetched = true
	return nil
}

// CommitHistory returns the cached branch commit history, fetching on
// first use.
func (c *Checker) CommitHistory(ctx context.Context) ([]ci.Commit, error) {
	if !c.historyFetched {
		since := time.Now().Add(-time.Duration(c.lookbackHours) * time.Hour)
		history, err := c.source.CommitHistory(ctx, c.branch, since)
		if err != nil {
			return nil, fmt.Errorf("fetch commit history: %w", err)
		}
		c.history = history
		c.historyFetched = true
	}
	return c.history, nil
}

// DetectWorkflow scans one workflow's commits for autorevert patterns.
//
// For each commit with final (non-pending) results and at least one
// classified failure, each distinct failure rule is evaluated
// independently: the rule must be absent from every commit in the lookback
// window and present on at least one commit in the lookahead window. The
// input is newest-first and time-sorted, so both window walks stop at the
// first commit outside the window.
func (c *Checker) DetectWorkflow(ctx context.Context, workflow string) ([]Pattern, error) {
	commits, err := c.WorkflowCommits(ctx, workflow)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}

	var patterns []Pattern

	for i := range commits {
		target := &commits[i]

		if len(target.FailedJobs()) == 0 {
			continue
		}
		// A target's result must be final; window neighbors may be pending.
		if target.HasPendingJobs() {
			continue
		}

		targetTime := target.CreatedAt

		// Window boundaries are contiguous index ranges because commits are
		// time-sorted newest-first.
		lookbackEnd := i + 1
		for lookbackEnd < len(commits) && targetTime.Sub(commits[lookbackEnd].CreatedAt) <= c.window {
			lookbackEnd++
		}
		lookback := commits[i+1 : lookbackEnd]

		lookaheadStart := i
		for lookaheadStart > 0 && commits[lookaheadStart-1].CreatedAt.Sub(targetTime) <= c.window {
			lookaheadStart--
		}
		lookahead := commits[lookaheadStart:i]

		for _, rule := range sortedRules(target.FailureRules()) {
			if anyCommitHasRule(lookback, rule) {
				continue // failure is not new
			}

			var lookaheadSHAs []string
			// Lookahead slice is newest-first; walk it nearest-first to
			// match the scan order of the window.
			for j := len(lookahead) - 1; j >= 0; j-- {
				if lookahead[j].HasFailureRule(rule) {
					lookaheadSHAs = append(lookaheadSHAs, lookahead[j].SHA)
				}
			}
			if len(lookaheadSHAs) == 0 {
				continue // failure did not persist
			}

			var jobNames []string
			for _, j := range target.FailedJobs() {
				if j.Rule == rule {
					jobNames = append(jobNames, ci.NormalizeJobName(j.Name))
				}
			}

			patterns = append(patterns, Pattern{
				Workflow:         workflow,
				Rule:             rule,
				TargetSHA:        target.SHA,
				TargetTime:       targetTime,
				LookaheadSHAs:    lookaheadSHAs,
				FailedJobNames:   jobNames,
				LookbackChecked:  len(lookback),
				LookaheadChecked: len(lookahead),
			})
		}
	}

	return patterns, nil
}

// Detect runs pattern detection across all configured workflows and merges
// the results. The first pattern seen for a target commit is canonical;
// later patterns for the same target from other workflows fold into its
// AdditionalWorkflows list.
func (c *Checker) Detect(ctx context.Context) ([]Pattern, error) {
	var all []Pattern
	seen := make(map[string]int) // target SHA -> index in all

	for _, workflow := range c.workflows {
		patterns, err := c.DetectWorkflow(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("detect workflow %s: %w", workflow, err)
		}

		for _, p := range patterns {
			if idx, ok := seen[p.TargetSHA]; ok {
				all[idx].AdditionalWorkflows = append(all[idx].AdditionalWorkflows, WorkflowRule{
					Workflow: p.Workflow,
					Rule:     p.Rule,
				})
				continue
			}
			seen[p.TargetSHA] = len(all)
			all = append(all, p)
		}
	}

	c.logger.Info("pattern detection finished",
		"workflows", len(c.workflows),
		"patterns", len(all))

	return all, nil
}

// sortedRules returns the rules of a set in deterministic order so evaluation
// and emitted patterns are stable across runs.
func sortedRules(rules map[string]bool) []string {
	out := make([]string, 0, len(rules))
	for r := range rules {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func anyCommitHasRule(commits []ci.CommitJobs, rule string) bool {
	for i := range commits {
		if commits[i].HasFailureRule(rule) {
			return true
		}
	}
	return false
}
