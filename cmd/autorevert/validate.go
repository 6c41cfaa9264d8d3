package main

import (
	"fmt"
	"os"

	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/hooks"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the syntax and semantics of an autorevert configuration file.

This command loads and validates the configuration file without running
a detection pass. It checks for:
  - Valid YAML syntax
  - Required fields
  - Valid watch schedule
  - Valid store driver configuration
  - Valid hook agent references (when agents are discoverable)

Example:
  autorevert validate --config ./autorevert.yaml`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	validateCmd.MarkFlagRequired("config")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	logger.Info("validating configuration", "path", configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	// Load and validate configuration (LoadConfig validates automatically)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", configPath,
		"workflows", cfg.Detection.Workflows,
		"branch", cfg.Detection.Branch,
		"store_driver", cfg.Store.Driver,
		"schedule", cfg.Watch.Schedule)

	// Resolve hook agents when any are configured
	hookCount := len(cfg.Hooks.OnPattern) + len(cfg.Hooks.OnRevert) + len(cfg.Hooks.OnDispatch)
	if hookCount > 0 {
		executor := hooks.New(logger)
		if err := executor.Discover(cfg.Hooks.AgentPaths); err != nil {
			logger.Warn("agent discovery failed", "error", err)
		}
		if err := hooks.ValidateHooks(executor, cfg.Hooks); err != nil {
			logger.Error("hook validation failed", "error", err)
			return fmt.Errorf("validation failed: %w", err)
		}
		logger.Info("hook agents resolved", "count", hookCount)
	}

	fmt.Fprintf(os.Stdout, "\n✓ Configuration is valid: %s\n", configPath)
	fmt.Fprintf(os.Stdout, "  Workflows: %d\n", len(cfg.Detection.Workflows))
	fmt.Fprintf(os.Stdout, "  Branch:    %s\n", cfg.Detection.Branch)
	fmt.Fprintf(os.Stdout, "  Window:    %dh within %dh lookback\n", cfg.Detection.WindowHours, cfg.Detection.LookbackHours)
	fmt.Fprintf(os.Stdout, "  Store:     %s (%s)\n", cfg.Store.Driver, cfg.Store.Path)
	fmt.Fprintf(os.Stdout, "  Schedule:  %s\n", cfg.Watch.Schedule)
	if hookCount > 0 {
		fmt.Fprintf(os.Stdout, "  Hooks:     %d\n", hookCount)
	}

	return nil
}
