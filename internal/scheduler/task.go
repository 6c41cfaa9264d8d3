package scheduler

import (
	"context"

	"github.com/google/uuid"
)

// TaskRunner is the interface that scheduled tasks must implement.
type TaskRunner interface {
	// Run executes the task with the given context.
	// It should respect context cancellation for graceful shutdown.
	Run(ctx context.Context) error
}

// TaskFunc adapts a plain function to the TaskRunner interface.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// GenerateRunID generates a unique UUID for a detection run.
func GenerateRunID() string {
	return uuid.New().String()
}
