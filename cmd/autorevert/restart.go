package main

import (
	"fmt"
	"log/slog"

	"github.com/caevv/autorevert/internal/clickhouse"
	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/caevv/autorevert/internal/restart"
	"github.com/google/go-github/v62/github"
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [workflow] [sha]",
	Short: "Re-dispatch a workflow for a commit",
	Long: `Re-trigger a workflow run for a specific commit.

The commit is tagged trunk/<sha> (if it is not already) and the mapped
workflow file is dispatched against that tag. Without --force, a commit
that already has a restart for the workflow is skipped.

Example:
  autorevert restart trunk 52081b6c5a5f69601c9d8d992faf07debd2f2c6f --config ./autorevert.yaml
  autorevert restart trunk 52081b6c5a5f69601c9d8d992faf07debd2f2c6f --dry-run`,
	RunE: runRestart,
	Args: cobra.ExactArgs(2),
}

func init() {
	restartCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	restartCmd.Flags().Bool("dry-run", false, "Log the dispatch without calling the GitHub API")
	restartCmd.Flags().Bool("force", false, "Dispatch even if a restart already exists")
	restartCmd.MarkFlagRequired("config")
}

func runRestart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	workflow := args[0]
	sha := args[1]

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		restartLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = restartLogger
		slog.SetDefault(restartLogger)
	}

	workflowFile, ok := cfg.Restart.WorkflowFiles[workflow]
	if !ok {
		return fmt.Errorf("no workflow file mapped for %q in restart.workflow_files", workflow)
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return fmt.Errorf("github owner and repo are required for dispatch")
	}

	ctx := setupSignalHandler()

	if !force {
		client, err := clickhouse.New(clickhouseConfig(cfg), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		checker := restart.NewChecker(client, logger)
		restarted, err := checker.HasRestarted(ctx, workflow, sha)
		client.Close()
		if err != nil {
			return fmt.Errorf("restart check failed: %w", err)
		}
		if restarted {
			fmt.Printf("✓ %s already restarted for %s (use --force to dispatch anyway)\n", workflow, shortSHA(sha))
			return nil
		}
	}

	ghClient := github.NewClient(nil)
	if cfg.GitHub.Token != "" {
		ghClient = ghClient.WithAuthToken(cfg.GitHub.Token)
	}

	dispatcher := restart.NewDispatcher(ghClient, cfg.GitHub.Owner, cfg.GitHub.Repo, dryRun, logger)
	if err := dispatcher.Restart(ctx, workflowFile, sha, nil); err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	if dryRun {
		fmt.Printf("✓ Dry run: would dispatch %s for %s\n", workflowFile, shortSHA(sha))
	} else {
		fmt.Printf("✓ Dispatched %s for %s\n", workflowFile, shortSHA(sha))
	}

	return nil
}
