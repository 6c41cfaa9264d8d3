package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caevv/autorevert/internal/clickhouse"
	"github.com/caevv/autorevert/internal/config"
	"github.com/caevv/autorevert/internal/detector"
	"github.com/caevv/autorevert/internal/logging"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug [workflow] [sha]",
	Short: "Explain detection for a single commit",
	Long: `Show the detection windows around one commit and the per-rule verdicts.

The commit may be given as a SHA prefix. For every failure rule on the
commit, the output shows whether the rule already existed in the
lookback window and which newer commits it persists in, mirroring what
a detection pass would decide.

Example:
  autorevert debug trunk 52081b6 --config ./autorevert.yaml`,
	RunE: runDebug,
	Args: cobra.ExactArgs(2),
}

func init() {
	debugCmd.Flags().StringP("config", "c", "autorevert.yaml", "Path to configuration file")
	debugCmd.MarkFlagRequired("config")
}

func runDebug(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	workflow := args[0]
	shaPrefix := args[1]

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		debugLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = debugLogger
		slog.SetDefault(debugLogger)
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

	cc, err := checker.AnalyzeCommit(ctx, workflow, shaPrefix)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if cc == nil {
		return fmt.Errorf("no commit matching %q in %s history", shaPrefix, workflow)
	}

	target := cc.Target
	fmt.Fprintf(os.Stdout, "Commit %s (%s)\n", target.SHA, workflow)
	fmt.Fprintf(os.Stdout, "  Run created: %s\n", target.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(os.Stdout, "  Jobs:        %d (%d failed)\n", len(target.Jobs), len(target.FailedJobs()))
	fmt.Fprintf(os.Stdout, "  Pending:     %v\n", target.HasPendingJobs())
	fmt.Fprintf(os.Stdout, "  Lookback:    %d commits\n", len(cc.Lookback))
	fmt.Fprintf(os.Stdout, "  Lookahead:   %d commits\n\n", len(cc.Lookahead))

	verdicts := cc.RuleVerdicts()
	if len(verdicts) == 0 {
		fmt.Fprintln(os.Stdout, "✓ No classified failures on this commit")
		return nil
	}

	for _, v := range verdicts {
		mark := "✗"
		if v.Detected {
			mark = "!"
		}
		fmt.Fprintf(os.Stdout, "%s rule %q\n", mark, v.Rule)
		fmt.Fprintf(os.Stdout, "    in lookback:  %v\n", v.InLookback)
		if len(v.LookaheadSHAs) > 0 {
			shas := make([]string, len(v.LookaheadSHAs))
			for i, s := range v.LookaheadSHAs {
				shas[i] = shortSHA(s)
			}
			fmt.Fprintf(os.Stdout, "    persists in:  %s\n", strings.Join(shas, ", "))
		}
		if v.Detected {
			fmt.Fprintln(os.Stdout, "    would be flagged as a pattern")
		}
	}

	return nil
}
