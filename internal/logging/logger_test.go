package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(*slog.Logger)
		shouldLog bool
	}{
		{
			name:      "debug level logs debug",
			level:     "debug",
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: true,
		},
		{
			name:      "info level skips debug",
			level:     "info",
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: false,
		},
		{
			name:      "info level logs info",
			level:     "info",
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
		{
			name:      "warn level logs warnings",
			level:     "warn",
			logFunc:   func(l *slog.Logger) { l.Warn("test message") },
			shouldLog: true,
		},
		{
			name:      "error level logs errors",
			level:     "error",
			logFunc:   func(l *slog.Logger) { l.Error("test message") },
			shouldLog: true,
		},
		{
			name:      "invalid level defaults to info",
			level:     "invalid",
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)
			tt.logFunc(logger)

			output := buf.String()
			if tt.shouldLog && output == "" {
				t.Error("expected log output, got none")
			}
			if !tt.shouldLog && output != "" {
				t.Errorf("expected no log output, got: %s", output)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		shouldRedact bool
	}{
		{
			name:         "redact GITHUB_TOKEN",
			key:          "GITHUB_TOKEN",
			value:        "ghp_secret123",
			shouldRedact: true,
		},
		{
			name:         "redact api_token (lowercase)",
			key:          "api_token",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact bare token key",
			key:          "token",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact DB_SECRET",
			key:          "DB_SECRET",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact clickhouse_password",
			key:          "clickhouse_password",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "don't redact workflow",
			key:          "workflow",
			value:        "trunk",
			shouldRedact: false,
		},
		{
			name:         "don't redact sha",
			key:          "sha",
			value:        "abc123",
			shouldRedact: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, "info")

			logger.Info("test", tt.key, tt.value)

			output := buf.String()
			if output == "" {
				t.Fatal("expected log output")
			}

			var logEntry map[string]any
			if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
				t.Fatalf("failed to parse log output: %v", err)
			}

			actualValue, ok := logEntry[tt.key]
			if !ok {
				t.Fatalf("expected field %s in log output", tt.key)
			}

			if tt.shouldRedact {
				if actualValue != "***REDACTED***" {
					t.Errorf("expected redacted value, got: %v", actualValue)
				}
			} else {
				if actualValue != tt.value {
					t.Errorf("expected value %s, got: %v", tt.value, actualValue)
				}
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	ctx := context.Background()
	ctx = WithContext(ctx, logger)

	retrieved := FromContext(ctx)
	if retrieved == nil {
		t.Fatal("expected logger from context, got nil")
	}

	retrieved.Info("test message")
	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("expected message in log output")
	}
}

func TestFromContextDefault(t *testing.T) {
	ctx := context.Background()

	logger := FromContext(ctx)
	if logger == nil {
		t.Fatal("expected default logger, got nil")
	}

	logger.Info("test")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	fields := map[string]any{
		"workflow": "trunk",
		"run_id":   "run-123",
		"patterns": 2,
	}

	enrichedLogger := WithFields(logger, fields)
	enrichedLogger.Info("test message")

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	for key, expectedValue := range fields {
		actualValue, ok := logEntry[key]
		if !ok {
			t.Errorf("expected field %s in log output", key)
			continue
		}

		// JSON numbers are float64
		if expectedInt, ok := expectedValue.(int); ok {
			if actualFloat, ok := actualValue.(float64); ok {
				if int(actualFloat) != expectedInt {
					t.Errorf("expected %s=%d, got %v", key, expectedInt, actualValue)
				}
			} else {
				t.Errorf("expected %s to be numeric, got %T", key, actualValue)
			}
		} else if actualValue != expectedValue {
			t.Errorf("expected %s=%v, got %v", key, expectedValue, actualValue)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info("test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if _, ok := logEntry["time"]; !ok {
		t.Error("expected 'time' field in JSON output")
	}
	if _, ok := logEntry["level"]; !ok {
		t.Error("expected 'level' field in JSON output")
	}
	if _, ok := logEntry["msg"]; !ok {
		t.Error("expected 'msg' field in JSON output")
	}

	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1=value1, got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) {
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}
