package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const loggerContextKey contextKey = "logger"

// secretPatterns defines regex patterns for fields that should be redacted.
// GitHub tokens and ClickHouse credentials must never reach log output.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i).*_TOKEN$`),
	regexp.MustCompile(`(?i).*_SECRET$`),
	regexp.MustCompile(`(?i).*PASSWORD.*`),
	regexp.MustCompile(`(?i)^token$`),
}

// New creates a new structured logger with the specified level.
// Level can be "debug", "info", "warn", or "error" (case-insensitive).
// Defaults to "info" if an invalid level is provided.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a new structured logger with a custom writer.
// This is useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactSecrets,
	}

	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactSecrets is a ReplaceAttr function that redacts sensitive fields.
func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	for _, pattern := range secretPatterns {
		if pattern.MatchString(a.Key) {
			return slog.Attr{
				Key:   a.Key,
				Value: slog.StringValue("***REDACTED***"),
			}
		}
	}
	return a
}

// WithContext attaches a logger to a context.
// This allows the logger to be passed through call chains via context.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext retrieves a logger from the context.
// If no logger is found, it returns a default logger at info level.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return New("info")
}

// WithFields creates a new logger with additional fields.
// This is useful for adding common fields like workflow, sha, or run_id.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// NewFromConfig creates a logger based on configuration settings.
// Supports format (json/text), level (debug/info/warn/error), and output (file path or stderr).
func NewFromConfig(format, level, output string) (*slog.Logger, error) {
	var writer io.Writer
	switch output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	case "discard", "/dev/null":
		writer = io.Discard
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = f
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), nil
}
