package main

import (
	"fmt"
	"log/slog"

	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/caevv/autorevert/internal/store"
	"github.com/caevv/autorevert/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse detection runs in a terminal UI",
	Long: `Open an interactive terminal dashboard over the recorded detection runs.

The dashboard shows recent runs with their pattern, revert, and restart
counts, and a detail view for each run. It reads the run history store
and never touches ClickHouse or GitHub.

Navigation:
  ↑/↓ or k/j  - Navigate run list
  enter       - View run details (patterns, reverts, restarts)
  esc         - Go back to run list
  g/G         - Jump to top/bottom
  r           - Refresh data
  q           - Quit

Example:
  autorevert tui --config ./autorevert.yaml`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	tuiCmd.MarkFlagRequired("config")
}

func runTUI(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// In TUI mode, suppress logs by default unless configured otherwise
	logOutput := cfg.Logging.Output
	if logOutput == "" {
		// Default to discard in TUI mode to avoid polluting the interface
		logOutput = "discard"
	}

	tuiLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, logOutput)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = tuiLogger
	slog.SetDefault(tuiLogger)

	// Open the run history store
	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Initialize TUI model
	model := tui.New(st, logger)

	// Create Bubbletea program
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	// Run the TUI
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
