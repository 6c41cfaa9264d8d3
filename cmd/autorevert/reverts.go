package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/caevv/autorevert/internal/clickhouse"
	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/detector"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/spf13/cobra"
)

var revertsCmd = &cobra.Command{
	Use:   "reverts",
	Short: "List revert commits in the lookback window",
	Long: `List the revert commits on the tracked branch within the configured
lookback window.

A commit counts as a revert when its message starts with 'Revert "' and
contains a "This reverts commit" marker.

Example:
  autorevert reverts --config ./autorevert.yaml`,
	RunE: runReverts,
}

func init() {
	revertsCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	revertsCmd.MarkFlagRequired("config")
}

func runReverts(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		revertsLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = revertsLogger
		slog.SetDefault(revertsLogger)
	}

	ctx := setupSignalHandler()

	client, err := clickhouse.New(clickhouseConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	defer client.Close()

	checker := detector.New(client, detector.Config{
		Workflows:     cfg.Detection.Workflows,
		Branch:        cfg.Detection.Branch,
		LookbackHours: cfg.Detection.LookbackHours,
		WindowHours:   cfg.Detection.WindowHours,
	}, logger)

	reverts, err := checker.RevertCommits(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch revert commits: %w", err)
	}

	if len(reverts) == 0 {
		fmt.Printf("No revert commits on %s in the last %dh\n", cfg.Detection.Branch, cfg.Detection.LookbackHours)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SHA\tTIME\tMESSAGE")
	for _, c := range reverts {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			shortSHA(c.SHA),
			c.Timestamp.Format("2006-01-02 15:04"),
			firstLine(c.Message, 70),
		)
	}
	w.Flush()
	fmt.Printf("\nTotal reverts: %d\n", len(reverts))

	return nil
}

// firstLine returns the first line of a commit message, truncated.
func firstLine(message string, maxLen int) string {
	line := message
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		line = message[:i]
	}
	if len(line) > maxLen {
		line = line[:maxLen-3] + "..."
	}
	return line
}
