package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// AgentExecutor manages agent discovery and execution
type AgentExecutor struct {
	logger *slog.Logger
	agents map[string]string
}

// AgentParams contains all parameters needed to execute an agent
type AgentParams struct {
	// Hook information
	Hook string

	// Run metadata
	RunID string

	// Detection context
	Workflow  string
	TargetSHA string
	Rule      string

	// EventJSON is the full event payload, written to the agent's stdin.
	EventJSON []byte

	// ConfigJSON is the per-agent `with:` block from the config.
	ConfigJSON string

	// Additional environment variables
	ExtraEnv map[string]string

	// Timeout for agent execution
	TimeoutSec int
}

// AgentResult contains the result of an agent execution
type AgentResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// Parsed JSON output from agent (optional)
	JSONOutput map[string]interface{}
}

// New creates a new AgentExecutor with discovered agents
func New(logger *slog.Logger) *AgentExecutor {
	return &AgentExecutor{
		logger: logger,
		agents: make(map[string]string),
	}
}

// Discover loads agents from the specified paths
func (e *AgentExecutor) Discover(paths []string) error {
	agents, err := DiscoverAgents(paths)
	if err != nil {
		return fmt.Errorf("failed to discover agents: %w", err)
	}

	e.agents = agents
	e.logger.Info("discovered agents",
		slog.Int("count", len(agents)),
		slog.Any("agents", getAgentNames(agents)))

	return nil
}

// Execute runs an agent with the specified parameters.
// The event payload is passed on stdin, the detection context via
// AUTOREVERT_* environment variables.
func (e *AgentExecutor) Execute(ctx context.Context, agentName string, params AgentParams) (*AgentResult, error) {
	agentPath, err := FindAgent(e.agents, agentName)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	if params.TimeoutSec > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(params.TimeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, agentPath)
	cmd.Env = e.buildEnvironment(params)

	if len(params.EventJSON) > 0 {
		cmd.Stdin = bytes.NewReader(params.EventJSON)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Info("executing agent",
		slog.String("agent", agentName),
		slog.String("path", agentPath),
		slog.String("hook", params.Hook),
		slog.String("run_id", params.RunID),
		slog.String("target_sha", params.TargetSHA))

	startTime := time.Now()
	execErr := cmd.Run()
	duration := time.Since(startTime)

	exitCode := 0
	if execErr != nil {
		if exitError, ok := execErr.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			// Context timeout or other error
			e.logger.Error("agent execution failed",
				slog.String("agent", agentName),
				slog.String("hook", params.Hook),
				slog.String("run_id", params.RunID),
				slog.String("error", execErr.Error()))
			return nil, fmt.Errorf("agent execution failed: %w", execErr)
		}
	}

	result := &AgentResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	result.JSONOutput = e.parseJSONOutput(result.Stdout)

	logLevel := slog.LevelInfo
	if exitCode != 0 {
		logLevel = slog.LevelWarn
	}

	e.logger.Log(ctx, logLevel, "agent execution completed",
		slog.String("agent", agentName),
		slog.String("hook", params.Hook),
		slog.String("run_id", params.RunID),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration))

	if result.Stderr != "" {
		e.logger.Debug("agent stderr",
			slog.String("agent", agentName),
			slog.String("stderr", result.Stderr))
	}

	return result, nil
}

// buildEnvironment creates the environment variables for agent execution
func (e *AgentExecutor) buildEnvironment(params AgentParams) []string {
	env := os.Environ()

	envVars := map[string]string{
		"AUTOREVERT_HOOK":        params.Hook,
		"AUTOREVERT_RUN_ID":      params.RunID,
		"AUTOREVERT_WORKFLOW":    params.Workflow,
		"AUTOREVERT_TARGET_SHA":  params.TargetSHA,
		"AUTOREVERT_RULE":        params.Rule,
		"AUTOREVERT_CONFIG_JSON": params.ConfigJSON,
	}

	for k, v := range params.ExtraEnv {
		envVars[k] = v
	}

	for k, v := range envVars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}

// parseJSONOutput attempts to parse JSON from agent stdout
func (e *AgentExecutor) parseJSONOutput(stdout string) map[string]interface{} {
	if stdout == "" {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &result); err == nil {
		return result
	}

	// Fall back to line-by-line scan for a JSON object
	lines := strings.Split(stdout, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") {
			var result map[string]interface{}
			if err := json.Unmarshal([]byte(line), &result); err == nil {
				return result
			}
		}
	}

	return nil
}

// getAgentNames returns the agent names from the agents map
func getAgentNames(agents map[string]string) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	return names
}

// GetAgents returns the discovered agents map
func (e *AgentExecutor) GetAgents() map[string]string {
	return e.agents
}
