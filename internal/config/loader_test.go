package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantError bool
		validate  func(*testing.T, *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
    - "trunk"
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ClickHouse.Host != "ch.example.com" {
					t.Errorf("expected host ch.example.com, got %s", cfg.ClickHouse.Host)
				}
				if len(cfg.Detection.Workflows) != 2 {
					t.Errorf("expected 2 workflows, got %d", len(cfg.Detection.Workflows))
				}
			},
		},
		{
			name: "config with defaults applied",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "info" {
					t.Errorf("expected default level info, got %s", cfg.Logging.Level)
				}
				if cfg.Logging.Format != "json" {
					t.Errorf("expected default format json, got %s", cfg.Logging.Format)
				}
				if cfg.Store.Driver != "bbolt" {
					t.Errorf("expected default driver bbolt, got %s", cfg.Store.Driver)
				}
				if cfg.Store.Path != "./.autorevert.db" {
					t.Errorf("expected default path ./.autorevert.db, got %s", cfg.Store.Path)
				}
				if cfg.ClickHouse.Port != 9000 {
					t.Errorf("expected default port 9000, got %d", cfg.ClickHouse.Port)
				}
				if cfg.ClickHouse.Username != "default" {
					t.Errorf("expected default username, got %s", cfg.ClickHouse.Username)
				}
				if cfg.Detection.Branch != "main" {
					t.Errorf("expected default branch main, got %s", cfg.Detection.Branch)
				}
				if cfg.Detection.LookbackHours != 48 {
					t.Errorf("expected default lookback 48, got %d", cfg.Detection.LookbackHours)
				}
				if cfg.Detection.WindowHours != 8 {
					t.Errorf("expected default window 8, got %d", cfg.Detection.WindowHours)
				}
				if cfg.Restart.DaysBack != 7 {
					t.Errorf("expected default days_back 7, got %d", cfg.Restart.DaysBack)
				}
				if cfg.Watch.Schedule != "every 15m" {
					t.Errorf("expected default schedule 'every 15m', got %s", cfg.Watch.Schedule)
				}
				if cfg.Hooks.TimeoutSec != 10 {
					t.Errorf("expected default hook timeout 10, got %d", cfg.Hooks.TimeoutSec)
				}
			},
		},
		{
			name: "secure clickhouse defaults to TLS port",
			yaml: `
clickhouse:
  host: "ch.example.com"
  secure: true

detection:
  workflows:
    - "pull"
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ClickHouse.Port != 9440 {
					t.Errorf("expected secure default port 9440, got %d", cfg.ClickHouse.Port)
				}
			},
		},
		{
			name: "config with hooks",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"

hooks:
  on_pattern:
    - agent: "notify.sh"
      with:
        channel: "#ci-alerts"
  on_revert:
    - agent: "record.sh"
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if len(cfg.Hooks.OnPattern) != 1 {
					t.Errorf("expected 1 on_pattern hook, got %d", len(cfg.Hooks.OnPattern))
				}
				if cfg.Hooks.OnPattern[0].Agent != "notify.sh" {
					t.Errorf("expected notify.sh agent, got %s", cfg.Hooks.OnPattern[0].Agent)
				}
				if len(cfg.Hooks.OnRevert) != 1 {
					t.Errorf("expected 1 on_revert hook, got %d", len(cfg.Hooks.OnRevert))
				}
			},
		},
		{
			name: "invalid store driver",
			yaml: `
store:
  driver: "invalid"

clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
`,
			wantError: true,
		},
		{
			name: "missing clickhouse host",
			yaml: `
detection:
  workflows:
    - "pull"
`,
			wantError: true,
		},
		{
			name: "no workflows defined",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows: []
`,
			wantError: true,
		},
		{
			name: "duplicate workflows",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
    - "pull"
`,
			wantError: true,
		},
		{
			name: "empty workflow name",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - ""
`,
			wantError: true,
		},
		{
			name: "window larger than lookback",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
  lookback_hours: 4
  window_hours: 8
`,
			wantError: true,
		},
		{
			name: "negative lookback",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"
  lookback_hours: -1
`,
			wantError: true,
		},
		{
			name: "invalid watch schedule",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"

watch:
  schedule: "not a schedule"
`,
			wantError: true,
		},
		{
			name: "valid cron watch schedule",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"

watch:
  schedule: "*/15 * * * *"
`,
			wantError: false,
		},
		{
			name: "negative hook timeout",
			yaml: `
clickhouse:
  host: "ch.example.com"

detection:
  workflows:
    - "pull"

hooks:
  timeout_sec: -1
`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(tmpFile, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write temp config: %v", err)
			}

			cfg, err := LoadConfig(tmpFile)

			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantError && tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
clickhouse:
  host: "ch.example.com"
  invalid: [unclosed
`
	if err := os.WriteFile(tmpFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("CH_PASSWORD", "s3cret")
	t.Setenv("GH_TOKEN", "ghp_example")

	yaml := `
clickhouse:
  host: "ch.example.com"
  password: "${CH_PASSWORD}"

github:
  owner: "pytorch"
  repo: "pytorch"
  token: "${GH_TOKEN}"

detection:
  workflows:
    - "pull"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClickHouse.Password != "s3cret" {
		t.Errorf("expected expanded password, got %s", cfg.ClickHouse.Password)
	}
	if cfg.GitHub.Token != "ghp_example" {
		t.Errorf("expected expanded token, got %s", cfg.GitHub.Token)
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		wantError bool
	}{
		{"valid cron 5 fields", "0 2 * * *", false},
		{"valid cron 6 fields", "0 0 2 * * *", false},
		{"valid @daily", "@daily", false},
		{"valid @hourly", "@hourly", false},
		{"valid @every 5m", "@every 5m", false},
		{"valid @every 30s", "@every 30s", false},
		{"valid every 15m", "every 15m", false},
		{"valid every 1h", "every 1h", false},
		{"invalid every no unit", "every 5", true},
		{"invalid @every no time", "@every", true},
		{"invalid @every wrong format", "@every 5", true},
		{"invalid @shortcut", "@invalid", true},
		{"empty schedule", "", true},
		{"too few fields", "0 2 *", true},
		{"too many fields", "0 0 0 2 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ClickHouse.Host = "ch.example.com"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.ClickHouse.Host != "ch.example.com" {
		t.Errorf("expected host ch.example.com, got %s", loaded.ClickHouse.Host)
	}
	if loaded.Detection.WindowHours != cfg.Detection.WindowHours {
		t.Errorf("expected window %d, got %d", cfg.Detection.WindowHours, loaded.Detection.WindowHours)
	}
}
