// Package restart answers whether a workflow was manually re-dispatched
// for a commit, and re-dispatches workflows through the GitHub API.
//
// A restart leaves a marker in job history: a workflow_dispatch-triggered
// run on the reserved branch ref "trunk/<sha>". The checker looks for that
// marker; the dispatcher creates it.
package restart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source answers restart-marker queries against job history. The workflow
// name is matched as a suffix so path-qualified workflow names still match.
type Source interface {
	// HasDispatch reports whether a workflow_dispatch run exists for the
	// commit on its "trunk/<sha>" branch ref.
	HasDispatch(ctx context.Context, workflowSuffix, sha string) (bool, error)

	// DispatchedSHAs returns every commit SHA with a workflow_dispatch run
	// on a "trunk/" branch ref since the given time.
	DispatchedSHAs(ctx context.Context, workflowSuffix string, since time.Time) ([]string, error)
}

// Checker caches restart lookups per (workflow, commit) pair for its
// lifetime; once a restart exists the underlying fact never changes.
type Checker struct {
	source Source
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]bool
}

// NewChecker creates a Checker over the given source.
func NewChecker(source Source, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		source: source,
		logger: logger,
		cache:  make(map[string]bool),
	}
}

func cacheKey(workflow, sha string) string {
	return workflow + ":" + sha
}

// HasRestarted reports whether the workflow was manually re-dispatched for
// the commit.
func (c *Checker) HasRestarted(ctx context.Context, workflow, sha string) (bool, error) {
	key := cacheKey(workflow, sha)

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	restarted, err := c.source.HasDispatch(ctx, workflow, sha)
	if err != nil {
		return false, fmt.Errorf("check restart marker for %s@%s: %w", workflow, sha, err)
	}

	c.mu.Lock()
	c.cache[key] = restarted
	c.mu.Unlock()
	return restarted, nil
}

// RestartedCommits returns the set of commit SHAs with restarted workflows
// in the last daysBack days, and back-fills the cache for every returned
// SHA.
func (c *Checker) RestartedCommits(ctx context.Context, workflow string, daysBack int) (map[string]bool, error) {
	since := time.Now().AddDate(0, 0, -daysBack)

	shas, err := c.source.DispatchedSHAs(ctx, workflow, since)
	if err != nil {
		return nil, fmt.Errorf("list restarted commits for %s: %w", workflow, err)
	}

	commits := make(map[string]bool, len(shas))
	c.mu.Lock()
	for _, sha := range shas {
		commits[sha] = true
		c.cache[cacheKey(workflow, sha)] = true
	}
	c.mu.Unlock()

	c.logger.Debug("restarted commits fetched",
		"workflow", workflow,
		"days_back", daysBack,
		"commits", len(commits))

	return commits, nil
}

// Reset clears the cache. Use a fresh Checker where possible; Reset exists
// for long-lived instances in watch mode.
func (c *Checker) Reset() {
	c.mu.Lock()
	c.cache = make(map[string]bool)
	c.mu.Unlock()
}
