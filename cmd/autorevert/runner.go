package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/caevv/autorevert/internal/clickhouse"
	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/detector"
	"github.com/caevv/autorevert/internal/hooks"
	"github.com/caevv/autorevert/internal/restart"
	"github.com/caevv/autorevert/internal/scheduler"
	"github.com/caevv/autorevert/internal/store"
	"github.com/google/go-github/v62/github"
)

// passSource is the CI history a detection pass reads from. The
// warehouse client satisfies it.
type passSource interface {
	detector.HistorySource
	restart.Source
	Close() error
}

// Runner orchestrates one detection pass: fetch CI history, detect
// patterns, correlate reverts, optionally dispatch workflow restarts, and
// record the run with notification hooks along the way.
type Runner struct {
	cfg      *config.Config
	store    store.Store
	hooks    *hooks.AgentExecutor
	dispatch bool
	dryRun   bool
	logger   *slog.Logger

	// newSource opens the CI history source for one pass.
	newSource func() (passSource, error)
}

// NewRunner creates a detection pass runner.
func NewRunner(cfg *config.Config, st store.Store, executor *hooks.AgentExecutor, dispatch, dryRun bool, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:      cfg,
		store:    st,
		hooks:    executor,
		dispatch: dispatch,
		dryRun:   dryRun,
		logger:   logger,
	}
	r.newSource = func() (passSource, error) {
		return clickhouse.New(clickhouseConfig(cfg), logger)
	}
	return r
}

// Run implements the scheduler.TaskRunner interface.
func (r *Runner) Run(ctx context.Context) error {
	_, err := r.RunPass(ctx)
	return err
}

// RunPass executes one detection pass and returns the recorded run. A
// fresh warehouse connection is opened per pass so every pass sees
// current data.
func (r *Runner) RunPass(ctx context.Context) (*store.DetectionRun, error) {
	runID := scheduler.GenerateRunID()

	run := &store.DetectionRun{
		RunID:         runID,
		StartTime:     time.Now(),
		Workflows:     r.cfg.Detection.Workflows,
		Branch:        r.cfg.Detection.Branch,
		LookbackHours: r.cfg.Detection.LookbackHours,
		Reverts:       make(map[string]*detector.RevertMatch),
	}

	r.logger.Info("starting detection pass",
		"run_id", runID,
		"workflows", r.cfg.Detection.Workflows,
		"branch", r.cfg.Detection.Branch,
		"lookback_hours", r.cfg.Detection.LookbackHours)

	// Record the run as in progress
	if err := r.store.SaveRun(run); err != nil {
		r.logger.Error("failed to save run", "run_id", runID, "error", err)
	}

	err := r.pass(ctx, run)

	run.EndTime = time.Now()
	if err != nil {
		run.Error = err.Error()
		r.logger.Error("detection pass failed",
			"run_id", runID,
			"duration", run.Duration(),
			"error", err)
	} else {
		r.logger.Info("detection pass finished",
			"run_id", runID,
			"duration", run.Duration(),
			"commits_scanned", run.CommitsScanned,
			"patterns", len(run.Patterns),
			"reverted", run.RevertedCount(),
			"dispatches", len(run.Dispatches))
	}

	if saveErr := r.store.SaveRun(run); saveErr != nil {
		r.logger.Error("failed to save run", "run_id", runID, "error", saveErr)
	}

	return run, err
}

func (r *Runner) pass(ctx context.Context, run *store.DetectionRun) error {
	client, err := r.newSource()
	if err != nil {
		return fmt.Errorf("failed to open history source: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			r.logger.Error("failed to close history source", "error", err)
		}
	}()

	checker := detector.New(client, detector.Config{
		Workflows:     r.cfg.Detection.Workflows,
		Branch:        r.cfg.Detection.Branch,
		LookbackHours: r.cfg.Detection.LookbackHours,
		WindowHours:   r.cfg.Detection.WindowHours,
	}, r.logger)

	patterns, err := checker.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	run.Patterns = patterns

	history, err := checker.CommitHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch commit history: %w", err)
	}
	run.CommitsScanned = len(history)

	var dispatcher *restart.Dispatcher
	var restartChecker *restart.Checker
	if r.dispatch {
		dispatcher, err = r.newDispatcher()
		if err != nil {
			return err
		}
		restartChecker = restart.NewChecker(client, r.logger)
	}

	for i := range patterns {
		p := &patterns[i]

		r.logger.Info("pattern detected",
			"run_id", run.RunID,
			"workflow", p.Workflow,
			"rule", p.Rule,
			"sha", p.TargetSHA,
			"failed_jobs", len(p.FailedJobNames))

		r.fireHooks(ctx, hooks.OnPattern, run.RunID, p, p)

		revert, err := checker.IsCommitReverted(ctx, p.TargetSHA)
		if err != nil {
			return fmt.Errorf("revert check for %s failed: %w", p.TargetSHA, err)
		}
		if revert != nil {
			run.Reverts[p.TargetSHA] = revert
			r.logger.Info("pattern commit already reverted",
				"run_id", run.RunID,
				"sha", p.TargetSHA,
				"revert_sha", revert.SHA,
				"hours_after", revert.HoursAfterTarget)

			r.fireHooks(ctx, hooks.OnRevert, run.RunID, p, map[string]any{
				"pattern": p,
				"revert":  revert,
			})
			continue
		}

		if dispatcher == nil {
			continue
		}

		if err := r.dispatchRestart(ctx, run, p, dispatcher, restartChecker); err != nil {
			return err
		}
	}

	return nil
}

// dispatchRestart re-triggers the pattern's workflow for the flagged
// commit, unless a restart already exists for it.
func (r *Runner) dispatchRestart(ctx context.Context, run *store.DetectionRun, p *detector.Pattern, dispatcher *restart.Dispatcher, checker *restart.Checker) error {
	workflowFile, ok := r.cfg.Restart.WorkflowFiles[p.Workflow]
	if !ok {
		r.logger.Warn("no workflow file mapped for restart, skipping",
			"run_id", run.RunID,
			"workflow", p.Workflow,
			"sha", p.TargetSHA)
		return nil
	}

	restarted, err := checker.HasRestarted(ctx, p.Workflow, p.TargetSHA)
	if err != nil {
		return fmt.Errorf("restart check for %s failed: %w", p.TargetSHA, err)
	}
	if restarted {
		r.logger.Info("workflow already restarted for commit",
			"run_id", run.RunID,
			"workflow", p.Workflow,
			"sha", p.TargetSHA)
		return nil
	}

	if err := dispatcher.Restart(ctx, workflowFile, p.TargetSHA, nil); err != nil {
		return fmt.Errorf("restart dispatch for %s failed: %w", p.TargetSHA, err)
	}

	dispatch := store.Dispatch{
		Workflow:     p.Workflow,
		SHA:          p.TargetSHA,
		DispatchedAt: time.Now(),
		DryRun:       r.dryRun,
	}
	run.Dispatches = append(run.Dispatches, dispatch)

	r.fireHooks(ctx, hooks.OnDispatch, run.RunID, p, map[string]any{
		"pattern":  p,
		"dispatch": dispatch,
	})

	return nil
}

// fireHooks runs the configured agents for the hook type. Hook failures
// never fail the pass unless fail_on_error is set.
func (r *Runner) fireHooks(ctx context.Context, hookType hooks.HookType, runID string, p *detector.Pattern, event any) {
	agents := hooks.GetHooksByType(r.cfg.Hooks, hookType)
	if len(agents) == 0 {
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal hook event",
			"hook_type", hookType.String(),
			"run_id", runID,
			"error", err)
		return
	}

	params := hooks.AgentParams{
		Hook:       hookType.String(),
		RunID:      runID,
		Workflow:   p.Workflow,
		TargetSHA:  p.TargetSHA,
		Rule:       p.Rule,
		EventJSON:  eventJSON,
		TimeoutSec: r.cfg.Hooks.TimeoutSec,
	}

	if err := hooks.ExecuteHooks(ctx, r.hooks, agents, params, r.cfg.Hooks.FailOnError); err != nil {
		r.logger.Error("hook execution failed",
			"hook_type", hookType.String(),
			"run_id", runID,
			"error", err)
	}
}

// newDispatcher builds the GitHub-backed workflow dispatcher.
func (r *Runner) newDispatcher() (*restart.Dispatcher, error) {
	if r.cfg.GitHub.Owner == "" || r.cfg.GitHub.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required for dispatch")
	}

	client := github.NewClient(nil)
	if r.cfg.GitHub.Token != "" {
		client = client.WithAuthToken(r.cfg.GitHub.Token)
	}

	return restart.NewDispatcher(client, r.cfg.GitHub.Owner, r.cfg.GitHub.Repo, r.dryRun, r.logger), nil
}

// clickhouseConfig maps the loaded configuration onto the warehouse
// client settings.
func clickhouseConfig(cfg *config.Config) clickhouse.Config {
	return clickhouse.Config{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
		Database: cfg.ClickHouse.Database,
		Secure:   cfg.ClickHouse.Secure,
	}
}
