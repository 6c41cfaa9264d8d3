package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	version      = "v0.1.0"
	defaultLimit = 100
	maxLimit     = 1000
)

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  s.Uptime(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListRuns returns recent detection runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := s.parseLimitParam(r)

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	runs, err := s.store.GetRuns(limit)
	if err != nil {
		s.logger.Error("failed to get runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve runs", err)
		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

// handleLatestRun returns the most recent detection run
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	runs, err := s.store.GetRuns(1)
	if err != nil {
		s.logger.Error("failed to get latest run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve latest run", err)
		return
	}

	if len(runs) == 0 {
		s.writeError(w, http.StatusNotFound, "no detection runs recorded yet", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, runs[0])
}

// handleGetRun returns a specific detection run by ID
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required", nil)
		return
	}

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		s.logger.Error("failed to get run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusNotFound, "run not found", err)
		return
	}

	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleListPatterns returns detected patterns flattened across recent runs,
// newest run first.
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	limit := s.parseLimitParam(r)

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	runs, err := s.store.GetRuns(limit)
	if err != nil {
		s.logger.Error("failed to get runs for patterns", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve patterns", err)
		return
	}

	patterns := make([]PatternSummary, 0)
	for _, run := range runs {
		for _, p := range run.Patterns {
			summary := PatternSummary{
				RunID:               run.RunID,
				Workflow:            p.Workflow,
				Rule:                p.Rule,
				TargetSHA:           p.TargetSHA,
				TargetTime:          p.TargetTime,
				FailedJobNames:      p.FailedJobNames,
				AdditionalWorkflows: p.AdditionalWorkflows,
			}
			if revert, ok := run.Reverts[p.TargetSHA]; ok {
				summary.Reverted = true
				summary.RevertSHA = revert.SHA
			}
			patterns = append(patterns, summary)
		}
	}

	s.writeJSON(w, http.StatusOK, patterns)
}

// handleGetStats returns aggregate statistics across stored runs
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	runs, err := s.store.GetRuns(maxLimit)
	if err != nil {
		s.logger.Error("failed to get runs for stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve stats", err)
		return
	}

	stats := StatsResponse{TotalRuns: len(runs)}
	for _, run := range runs {
		stats.TotalPatterns += len(run.Patterns)
		stats.RevertedPatterns += run.RevertedCount()
		stats.TotalDispatches += len(run.Dispatches)
	}
	if len(runs) > 0 {
		t := runs[0].StartTime
		stats.LastRunTime = &t
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// parseLimitParam parses the limit query parameter
func (s *Server) parseLimitParam(r *http.Request) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit
	}

	var limit int
	if _, err := fmt.Sscanf(limitStr, "%d", &limit); err != nil {
		return defaultLimit
	}

	if limit <= 0 {
		return defaultLimit
	}

	if limit > maxLimit {
		return maxLimit
	}

	return limit
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil && s.logger != nil {
		s.logger.Error("API error", "status", status, "message", message, "error", err)
	}

	s.writeJSON(w, status, response)
}
