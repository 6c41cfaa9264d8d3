package main

import (
	"fmt"
	"os"

	"github.com/caevv/autorevert/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a configuration file with sensible defaults.

The generated file tracks the pull and trunk workflows on main against a
local ClickHouse instance; edit the connection and github sections
before the first detection pass.

Example:
  autorevert init --config ./autorevert.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
	}

	cfg := config.NewDefaultConfig()
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(os.Stdout, "✓ Wrote %s\n", configPath)
	fmt.Fprintf(os.Stdout, "  Edit the clickhouse and github sections, then run:\n")
	fmt.Fprintf(os.Stdout, "  autorevert validate --config %s\n", configPath)

	return nil
}
