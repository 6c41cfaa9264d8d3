package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/hooks"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/caevv/autorevert/internal/scheduler"
	"github.com/caevv/autorevert/internal/server"
	"github.com/caevv/autorevert/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run detection passes on a schedule",
	Long: `Run the detector continuously on the configured schedule.

Each pass fetches fresh CI history, detects failure patterns, correlates
reverts, and records the run. When watch.addr is configured, a JSON
status API serves the recorded runs. It runs until interrupted by
SIGINT or SIGTERM.

Example:
  autorevert watch --config ./autorevert.yaml`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	watchCmd.Flags().Bool("dry-run", false, "Log dispatches without calling the GitHub API")
	watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply logging config from YAML if provided
	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		watchLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = watchLogger
		slog.SetDefault(watchLogger)
	}

	logger.Info("starting autorevert in watch mode",
		"config", configPath,
		"schedule", cfg.Watch.Schedule,
		"addr", cfg.Watch.Addr,
		"dispatch", cfg.Watch.Dispatch)
	logger.Info("configuration loaded successfully",
		"workflows", cfg.Detection.Workflows,
		"branch", cfg.Detection.Branch,
		"store_driver", cfg.Store.Driver)

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

	logger.Info("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	// Initialize notification hooks
	executor := hooks.New(logger)
	if err := executor.Discover(cfg.Hooks.AgentPaths); err != nil {
		logger.Warn("agent discovery failed", "error", err)
	}
	if err := hooks.ValidateHooks(executor, cfg.Hooks); err != nil {
		return fmt.Errorf("hook validation failed: %w", err)
	}

	runner := NewRunner(cfg, st, executor, cfg.Watch.Dispatch, dryRun, logger)

	// Setup signal handling for graceful shutdown
	ctx := setupSignalHandler()

	// Initialize scheduler
	sched := scheduler.New(ctx, logger)
	if err := sched.AddTask("detect", cfg.Watch.Schedule, runner); err != nil {
		return fmt.Errorf("failed to schedule detection: %w", err)
	}

	// Use errgroup to run scheduler and status server concurrently
	g, gCtx := errgroup.WithContext(ctx)

	// Start scheduler
	g.Go(func() error {
		logger.Info("starting scheduler...")
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		// Scheduler runs until context is cancelled
		<-gCtx.Done()
		return nil
	})

	// Start status server when configured
	var srv *server.Server
	if cfg.Watch.Addr != "" {
		srv = server.New(cfg.Watch.Addr, st, logger)
		g.Go(func() error {
			logger.Info("starting status server", "addr", cfg.Watch.Addr)
			if err := srv.Start(gCtx); err != nil && err != context.Canceled {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
	}

	// Shutdown handler
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down gracefully...")

		// Stop scheduler first
		if err := sched.Stop(); err != nil {
			logger.Error("error stopping scheduler", "error", err)
		}

		// Stop status server
		if srv != nil {
			if err := srv.Stop(context.Background()); err != nil {
				logger.Error("error stopping server", "error", err)
			}
		}

		return nil
	})

	logger.Info("watch mode started successfully", "schedule", cfg.Watch.Schedule)

	// Wait for all goroutines
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("error during execution", "error", err)
		return err
	}

	logger.Info("autorevert stopped")
	return nil
}
