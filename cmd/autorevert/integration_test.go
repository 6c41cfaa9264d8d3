package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caevv/autorevert/internal/ci"
	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/hooks"
	"github.com/caevv/autorevert/internal/scheduler"
	"github.com/caevv/autorevert/internal/store"
)

// fakeSource serves canned CI history for a detection pass.
type fakeSource struct {
	commits    map[string][]ci.CommitJobs
	history    []ci.Commit
	dispatched map[string]bool
	err        error
}

func (f *fakeSource) WorkflowCommits(ctx context.Context, workflows []string, branch string, since time.Time) (map[string][]ci.CommitJobs, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.commits, nil
}

func (f *fakeSource) CommitHistory(ctx context.Context, branch string, since time.Time) ([]ci.Commit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeSource) HasDispatch(ctx context.Context, workflowSuffix, sha string) (bool, error) {
	return f.dispatched[sha], nil
}

func (f *fakeSource) DispatchedSHAs(ctx context.Context, workflowSuffix string, since time.Time) ([]string, error) {
	var shas []string
	for sha := range f.dispatched {
		shas = append(shas, sha)
	}
	return shas, nil
}

func (f *fakeSource) Close() error { return nil }

func job(sha, name, conclusion, rule string, t time.Time) ci.JobResult {
	return ci.JobResult{
		SHA:          sha,
		Name:         name,
		Conclusion:   conclusion,
		Status:       "completed",
		Rule:         rule,
		RunCreatedAt: t,
	}
}

// patternSource builds a history where the rule first appears on
// commit "bad" and persists into the newer commit "head".
func patternSource() *fakeSource {
	base := time.Now().Add(-2 * time.Hour)
	head := base
	bad := base.Add(-1 * time.Hour)
	clean := base.Add(-2 * time.Hour)

	return &fakeSource{
		commits: map[string][]ci.CommitJobs{
			"trunk": {
				{SHA: "head", CreatedAt: head, Jobs: []ci.JobResult{
					job("head", "linux-test", "failure", "pytest failure", head),
				}},
				{SHA: "bad", CreatedAt: bad, Jobs: []ci.JobResult{
					job("bad", "linux-test", "failure", "pytest failure", bad),
					job("bad", "linux-build", "success", "", bad),
				}},
				{SHA: "clean", CreatedAt: clean, Jobs: []ci.JobResult{
					job("clean", "linux-test", "success", "", clean),
				}},
			},
		},
		history: []ci.Commit{
			{SHA: "head", Message: "head commit", Timestamp: head},
			{SHA: "bad", Message: "bad commit", Timestamp: bad},
			{SHA: "clean", Message: "clean commit", Timestamp: clean},
		},
		dispatched: map[string]bool{},
	}
}

func testConfig(tmpDir string) *config.Config {
	return &config.Config{
		Store: config.Store{
			Driver: "json",
			Path:   filepath.Join(tmpDir, "runs.json"),
		},
		Detection: config.Detection{
			Workflows:     []string{"trunk"},
			Branch:        "main",
			LookbackHours: 48,
			WindowHours:   8,
		},
		Restart: config.Restart{
			WorkflowFiles: map[string]string{"trunk": "trunk.yml"},
		},
		GitHub: config.GitHub{Owner: "acme", Repo: "widgets"},
		Hooks:  config.Hooks{TimeoutSec: 10},
	}
}

func newTestRunner(t *testing.T, cfg *config.Config, src *fakeSource, dispatch bool) (*Runner, store.Store) {
	t.Helper()

	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	executor := hooks.New(log)
	if err := executor.Discover(cfg.Hooks.AgentPaths); err != nil {
		t.Fatalf("Failed to discover agents: %v", err)
	}

	r := NewRunner(cfg, st, executor, dispatch, true, log)
	r.newSource = func() (passSource, error) { return src, nil }
	return r, st
}

func TestIntegration_DetectionPass(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	runner, st := newTestRunner(t, cfg, patternSource(), false)

	run, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if len(run.Patterns) != 1 {
		t.Fatalf("Patterns = %d, want 1", len(run.Patterns))
	}
	p := run.Patterns[0]
	if p.TargetSHA != "bad" {
		t.Errorf("TargetSHA = %v, want 'bad'", p.TargetSHA)
	}
	if p.Rule != "pytest failure" {
		t.Errorf("Rule = %v, want 'pytest failure'", p.Rule)
	}
	if run.CommitsScanned != 3 {
		t.Errorf("CommitsScanned = %d, want 3", run.CommitsScanned)
	}
	if run.IsRunning() {
		t.Error("Run should be finished")
	}

	// The run must be persisted
	got, err := st.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if len(got.Patterns) != 1 {
		t.Errorf("Persisted patterns = %d, want 1", len(got.Patterns))
	}
}

func TestIntegration_RevertCorrelation(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	src := patternSource()
	revertTime := src.history[0].Timestamp.Add(30 * time.Minute)
	src.history = append([]ci.Commit{{
		SHA:       "rev",
		Message:   "Revert \"bad commit\"\n\nThis reverts commit bad.",
		Timestamp: revertTime,
	}}, src.history...)

	runner, _ := newTestRunner(t, cfg, src, false)

	run, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	revert, ok := run.Reverts["bad"]
	if !ok || revert == nil {
		t.Fatal("Pattern commit should be correlated with its revert")
	}
	if revert.SHA != "rev" {
		t.Errorf("Revert SHA = %v, want 'rev'", revert.SHA)
	}
	if run.RevertedCount() != 1 {
		t.Errorf("RevertedCount() = %d, want 1", run.RevertedCount())
	}
}

func TestIntegration_DispatchDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	runner, _ := newTestRunner(t, cfg, patternSource(), true)

	run, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if len(run.Dispatches) != 1 {
		t.Fatalf("Dispatches = %d, want 1", len(run.Dispatches))
	}
	d := run.Dispatches[0]
	if d.Workflow != "trunk" || d.SHA != "bad" {
		t.Errorf("Dispatch = %s @ %s, want trunk @ bad", d.Workflow, d.SHA)
	}
	if !d.DryRun {
		t.Error("Dispatch should be marked as dry run")
	}
}

func TestIntegration_DispatchSkipsRestarted(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	src := patternSource()
	src.dispatched["bad"] = true

	runner, _ := newTestRunner(t, cfg, src, true)

	run, err := runner.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if len(run.Dispatches) != 0 {
		t.Errorf("Dispatches = %d, want 0 for already-restarted commit", len(run.Dispatches))
	}
}

func TestIntegration_HookExecution(t *testing.T) {
	tmpDir := t.TempDir()
	agentDir := filepath.Join(tmpDir, "agents")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("Failed to create agent dir: %v", err)
	}

	// Agent records its hook type, target, and stdin payload
	outFile := filepath.Join(tmpDir, "hooks.log")
	agentScript := fmt.Sprintf(`#!/bin/sh
echo "$AUTOREVERT_HOOK $AUTOREVERT_TARGET_SHA $(cat)" >> %s
exit 0
`, outFile)
	if err := os.WriteFile(filepath.Join(agentDir, "record.sh"), []byte(agentScript), 0o755); err != nil {
		t.Fatalf("Failed to create agent script: %v", err)
	}

	cfg := testConfig(tmpDir)
	cfg.Hooks.AgentPaths = []string{agentDir}
	cfg.Hooks.OnPattern = []config.Agent{{Agent: "record.sh"}}
	cfg.Hooks.OnDispatch = []config.Agent{{Agent: "record.sh"}}

	runner, _ := newTestRunner(t, cfg, patternSource(), true)

	if _, err := runner.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("Hook output not written: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "on_pattern bad") {
		t.Errorf("on_pattern hook not recorded, got: %s", out)
	}
	if !strings.Contains(out, "on_dispatch bad") {
		t.Errorf("on_dispatch hook not recorded, got: %s", out)
	}
	if !strings.Contains(out, `"rule":"pytest failure"`) {
		t.Errorf("event payload missing rule, got: %s", out)
	}
}

func TestIntegration_PassFailureRecorded(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	src := &fakeSource{err: fmt.Errorf("warehouse unavailable")}
	runner, st := newTestRunner(t, cfg, src, false)

	run, err := runner.RunPass(context.Background())
	if err == nil {
		t.Fatal("RunPass() should fail when the source errors")
	}

	got, err := st.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Error == "" {
		t.Error("Failed run should record its error")
	}
	if !strings.Contains(got.Error, "warehouse unavailable") {
		t.Errorf("Error = %q, want it to mention the source failure", got.Error)
	}
}

func TestIntegration_ScheduledDetection(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	runner, st := newTestRunner(t, cfg, patternSource(), false)

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	sched := scheduler.New(ctx, log)

	if err := sched.AddTask("detect", "@every 1s", runner); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(2500 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Failed to stop scheduler: %v", err)
	}

	runs, err := st.GetRuns(10)
	if err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}
	if len(runs) == 0 {
		t.Fatal("No detection runs recorded")
	}
	if len(runs[0].Patterns) != 1 {
		t.Errorf("Latest run patterns = %d, want 1", len(runs[0].Patterns))
	}
}
