package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRefPattern matches ${VAR} references in the raw config file.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig loads and validates an autorevert configuration from a YAML
// file. ${VAR} references are expanded from the environment before
// parsing, so secrets can stay out of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = expandEnvRefs(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// expandEnvRefs replaces ${VAR} with the variable's value. Unset variables
// expand to the empty string, which validation then catches for required
// fields.
func expandEnvRefs(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envRefPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "bbolt"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./.autorevert.db"
	}

	if cfg.ClickHouse.Port == 0 {
		if cfg.ClickHouse.Secure {
			cfg.ClickHouse.Port = 9440
		} else {
			cfg.ClickHouse.Port = 9000
		}
	}
	if cfg.ClickHouse.Username == "" {
		cfg.ClickHouse.Username = "default"
	}
	if cfg.ClickHouse.Database == "" {
		cfg.ClickHouse.Database = "default"
	}

	if cfg.Detection.Branch == "" {
		cfg.Detection.Branch = "main"
	}
	if cfg.Detection.LookbackHours == 0 {
		cfg.Detection.LookbackHours = 48
	}
	if cfg.Detection.WindowHours == 0 {
		cfg.Detection.WindowHours = 8
	}

	if cfg.Restart.DaysBack == 0 {
		cfg.Restart.DaysBack = 7
	}
	if cfg.Restart.WorkflowFiles == nil {
		cfg.Restart.WorkflowFiles = make(map[string]string)
	}

	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = "every 15m"
	}

	if cfg.Hooks.TimeoutSec == 0 {
		cfg.Hooks.TimeoutSec = 10
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	validDrivers := map[string]bool{
		"bbolt": true,
		"json":  true,
	}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'bbolt' or 'json')", cfg.Store.Driver)
	}

	if cfg.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if cfg.ClickHouse.Port < 0 || cfg.ClickHouse.Port > 65535 {
		return fmt.Errorf("clickhouse.port out of range: %d", cfg.ClickHouse.Port)
	}

	if len(cfg.Detection.Workflows) == 0 {
		return fmt.Errorf("detection.workflows must list at least one workflow")
	}
	seen := make(map[string]bool)
	for _, workflow := range cfg.Detection.Workflows {
		if workflow == "" {
			return fmt.Errorf("detection.workflows contains an empty name")
		}
		if seen[workflow] {
			return fmt.Errorf("duplicate workflow: %s", workflow)
		}
		seen[workflow] = true
	}
	if cfg.Detection.LookbackHours < 0 {
		return fmt.Errorf("detection.lookback_hours must be non-negative")
	}
	if cfg.Detection.WindowHours < 0 {
		return fmt.Errorf("detection.window_hours must be non-negative")
	}
	if cfg.Detection.WindowHours > cfg.Detection.LookbackHours {
		return fmt.Errorf("detection.window_hours (%d) exceeds lookback_hours (%d)",
			cfg.Detection.WindowHours, cfg.Detection.LookbackHours)
	}

	if cfg.Restart.DaysBack < 0 {
		return fmt.Errorf("restart.days_back must be non-negative")
	}

	if err := ValidateSchedule(cfg.Watch.Schedule); err != nil {
		return fmt.Errorf("invalid watch.schedule: %w", err)
	}

	if cfg.Hooks.TimeoutSec < 0 {
		return fmt.Errorf("hooks.timeout_sec must be non-negative")
	}

	return nil
}

// ValidateSchedule checks if a schedule expression is valid. Supports cron
// expressions, @-prefixed shortcuts, @every intervals, and the
// "every <n><unit>" convenience form.
func ValidateSchedule(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(schedule), "every ") {
		interval := strings.TrimSpace(schedule[len("every "):])
		if matched, _ := regexp.MatchString(`^\d+\s*(s|sec|seconds?|m|min|minutes?|h|hours?|d|days?)$`, strings.ToLower(interval)); matched {
			return nil
		}
		return fmt.Errorf("invalid interval: %s (must be like 'every 5m', 'every 1h')", interval)
	}

	if strings.HasPrefix(schedule, "@") {
		shortcuts := []string{"@annually", "@yearly", "@monthly", "@weekly", "@daily", "@hourly"}
		for _, shortcut := range shortcuts {
			if schedule == shortcut {
				return nil
			}
		}

		if strings.HasPrefix(schedule, "@every ") {
			interval := strings.TrimPrefix(schedule, "@every ")
			if matched, _ := regexp.MatchString(`^\d+[smh]$`, interval); matched {
				return nil
			}
			return fmt.Errorf("invalid @every interval: %s (must be like '5m', '1h', '30s')", interval)
		}

		return fmt.Errorf("unknown schedule shortcut: %s", schedule)
	}

	// Basic cron shape check; robfig/cron validates fully at parse time.
	fields := strings.Fields(schedule)
	if len(fields) < 5 || len(fields) > 6 {
		return fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
	}

	return nil
}
