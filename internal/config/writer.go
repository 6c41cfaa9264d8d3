package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes a Config to a YAML file.
// It performs an atomic write by writing to a temporary file first,
// then renaming it to the target path.
func SaveConfig(cfg *Config, path string) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a new Config with sensible defaults, suitable
// as a starting point for `autorevert init`.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Store: Store{
			Driver: "bbolt",
			Path:   "./.autorevert.db",
		},
		ClickHouse: ClickHouse{
			Host:     "localhost",
			Port:     9000,
			Username: "default",
			Database: "default",
		},
		Detection: Detection{
			Workflows:     []string{"pull", "trunk"},
			Branch:        "main",
			LookbackHours: 48,
			WindowHours:   8,
		},
		Restart: Restart{
			WorkflowFiles: map[string]string{
				"trunk": "trunk.yml",
			},
			DaysBack: 7,
		},
		Watch: Watch{
			Schedule: "every 15m",
			Addr:     ":8080",
		},
		Hooks: Hooks{
			TimeoutSec: 10,
		},
	}
}
