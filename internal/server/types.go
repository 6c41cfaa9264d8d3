package server

import (
	"time"

	"github.com/caevv/autorevert/internal/detector"
)

// PatternSummary is the API view of a detected failure pattern.
type PatternSummary struct {
	RunID               string    `json:"run_id"`
	Workflow            string    `json:"workflow"`
	Rule                string    `json:"rule"`
	TargetSHA           string    `json:"target_sha"`
	TargetTime          time.Time `json:"target_time"`
	FailedJobNames      []string  `json:"failed_job_names,omitempty"`
	AdditionalWorkflows []detector.WorkflowRule `json:"additional_workflows,omitempty"`
	Reverted            bool      `json:"reverted"`
	RevertSHA           string    `json:"revert_sha,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// StatsResponse represents overall statistics across stored runs
type StatsResponse struct {
	TotalRuns        int        `json:"total_runs"`
	TotalPatterns    int        `json:"total_patterns"`
	RevertedPatterns int        `json:"reverted_patterns"`
	TotalDispatches  int        `json:"total_dispatches"`
	LastRunTime      *time.Time `json:"last_run_time,omitempty"`
}
