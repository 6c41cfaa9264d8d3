package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caevv/autorevert/internal/config"
)

// HookType represents different detection lifecycle hooks
type HookType string

const (
	// OnPattern is executed when a failure pattern is detected
	OnPattern HookType = "on_pattern"

	// OnRevert is executed when a detected pattern is matched to a revert commit
	OnRevert HookType = "on_revert"

	// OnDispatch is executed after a workflow restart is dispatched
	OnDispatch HookType = "on_dispatch"
)

// String returns the string representation of HookType
func (h HookType) String() string {
	return string(h)
}

// ExecuteHooks runs all agents of a given hook type.
func ExecuteHooks(
	ctx context.Context,
	executor *AgentExecutor,
	agents []config.Agent,
	params AgentParams,
	failOnError bool,
) error {
	if len(agents) == 0 {
		return nil
	}

	executor.logger.Debug("executing hooks",
		slog.String("hook_type", params.Hook),
		slog.Int("count", len(agents)),
		slog.String("run_id", params.RunID))

	var firstError error

	for i, agent := range agents {
		configJSON, err := json.Marshal(agent.With)
		if err != nil {
			executor.logger.Error("failed to marshal hook config",
				slog.String("agent", agent.Agent),
				slog.String("hook_type", params.Hook),
				slog.String("error", err.Error()))

			if failOnError {
				return fmt.Errorf("failed to marshal config for agent %s: %w", agent.Agent, err)
			}

			if firstError == nil {
				firstError = err
			}
			continue
		}

		agentParams := params
		agentParams.ConfigJSON = string(configJSON)

		result, err := executor.Execute(ctx, agent.Agent, agentParams)
		if err != nil {
			executor.logger.Error("hook execution failed",
				slog.String("agent", agent.Agent),
				slog.String("hook_type", params.Hook),
				slog.Int("hook_index", i),
				slog.String("run_id", params.RunID),
				slog.String("error", err.Error()))

			if failOnError {
				return fmt.Errorf("hook %s (agent: %s) failed: %w", params.Hook, agent.Agent, err)
			}

			if firstError == nil {
				firstError = err
			}
			continue
		}

		if result.ExitCode != 0 {
			executor.logger.Warn("hook returned non-zero exit code",
				slog.String("agent", agent.Agent),
				slog.String("hook_type", params.Hook),
				slog.Int("hook_index", i),
				slog.Int("exit_code", result.ExitCode),
				slog.String("run_id", params.RunID),
				slog.String("stderr", result.Stderr))

			if failOnError {
				return fmt.Errorf("hook %s (agent: %s) exited with code %d",
					params.Hook, agent.Agent, result.ExitCode)
			}

			if firstError == nil {
				firstError = fmt.Errorf("agent %s exited with code %d", agent.Agent, result.ExitCode)
			}
			continue
		}

		executor.logger.Info("hook executed successfully",
			slog.String("agent", agent.Agent),
			slog.String("hook_type", params.Hook),
			slog.Int("hook_index", i),
			slog.String("run_id", params.RunID),
			slog.Duration("duration", result.Duration))

		if result.JSONOutput != nil {
			executor.logger.Debug("hook output",
				slog.String("agent", agent.Agent),
				slog.Any("output", result.JSONOutput))
		}
	}

	return firstError
}

// ValidateHooks checks that every configured agent has been discovered.
func ValidateHooks(executor *AgentExecutor, cfg config.Hooks) error {
	hookLists := map[string][]config.Agent{
		"on_pattern":  cfg.OnPattern,
		"on_revert":   cfg.OnRevert,
		"on_dispatch": cfg.OnDispatch,
	}

	for hookType, agents := range hookLists {
		for i, agent := range agents {
			if _, err := FindAgent(executor.agents, agent.Agent); err != nil {
				return fmt.Errorf("invalid agent in %s hook #%d: %w", hookType, i, err)
			}
		}
	}

	return nil
}

// GetHooksByType returns the agents configured for a specific hook type.
func GetHooksByType(cfg config.Hooks, hookType HookType) []config.Agent {
	switch hookType {
	case OnPattern:
		return cfg.OnPattern
	case OnRevert:
		return cfg.OnRevert
	case OnDispatch:
		return cfg.OnDispatch
	default:
		return nil
	}
}
