package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/hooks"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/caevv/autorevert/internal/store"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run a single detection pass",
	Long: `Run one detection pass over recent CI history and print the findings.

The pass fetches job results for the configured workflows, detects
failure patterns, correlates them with revert commits, and records the
run in the store. With --dispatch, workflows are re-triggered for
flagged commits that were neither reverted nor already restarted.

Example:
  autorevert detect --config ./autorevert.yaml
  autorevert detect --config ./autorevert.yaml --dispatch --dry-run`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	detectCmd.Flags().Bool("dispatch", false, "Re-dispatch workflows for flagged commits")
	detectCmd.Flags().Bool("dry-run", false, "Log dispatches without calling the GitHub API")
	detectCmd.MarkFlagRequired("config")
}

func runDetect(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dispatch, _ := cmd.Flags().GetBool("dispatch")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply logging config from YAML if provided
	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		detectLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = detectLogger
		slog.SetDefault(detectLogger)
	}

	logger.Info("starting detection", "config", configPath, "dispatch", dispatch, "dry_run", dryRun)

	// Initialize store for run history
	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Initialize notification hooks
	executor := hooks.New(logger)
	if err := executor.Discover(cfg.Hooks.AgentPaths); err != nil {
		logger.Warn("agent discovery failed", "error", err)
	}

	runner := NewRunner(cfg, st, executor, dispatch, dryRun, logger)

	ctx := setupSignalHandler()

	run, err := runner.RunPass(ctx)
	if err != nil {
		return err
	}

	printRunSummary(run)
	return nil
}

// printRunSummary writes a human-readable pass summary to stdout.
func printRunSummary(run *store.DetectionRun) {
	fmt.Fprintf(os.Stdout, "\nDetection pass %s\n", run.RunID)
	fmt.Fprintf(os.Stdout, "  Workflows: %s\n", strings.Join(run.Workflows, ", "))
	fmt.Fprintf(os.Stdout, "  Branch:    %s\n", run.Branch)
	fmt.Fprintf(os.Stdout, "  Commits:   %d scanned in %dh\n", run.CommitsScanned, run.LookbackHours)
	fmt.Fprintf(os.Stdout, "  Duration:  %s\n\n", run.Duration().Round(time.Millisecond))

	if len(run.Patterns) == 0 {
		fmt.Fprintln(os.Stdout, "✓ No failure patterns detected")
		return
	}

	for _, p := range run.Patterns {
		fmt.Fprintf(os.Stdout, "✗ %s: %q on %s\n", p.Workflow, p.Rule, shortSHA(p.TargetSHA))
		fmt.Fprintf(os.Stdout, "    failed jobs:  %s\n", strings.Join(p.FailedJobNames, ", "))
		fmt.Fprintf(os.Stdout, "    persists in:  %d newer commits\n", len(p.LookaheadSHAs))
		for _, wr := range p.AdditionalWorkflows {
			fmt.Fprintf(os.Stdout, "    also flagged: %s (%s)\n", wr.Workflow, wr.Rule)
		}
		if revert, ok := run.Reverts[p.TargetSHA]; ok && revert != nil {
			fmt.Fprintf(os.Stdout, "    reverted by:  %s (%.1fh later)\n", shortSHA(revert.SHA), revert.HoursAfterTarget)
		}
	}

	if len(run.Dispatches) > 0 {
		fmt.Fprintln(os.Stdout)
		for _, d := range run.Dispatches {
			mode := ""
			if d.DryRun {
				mode = " (dry run)"
			}
			fmt.Fprintf(os.Stdout, "↻ restarted %s @ %s%s\n", d.Workflow, shortSHA(d.SHA), mode)
		}
	}
}

// shortSHA abbreviates a commit SHA for display.
func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
