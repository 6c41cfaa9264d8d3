// Package clickhouse implements the detector's history source and the
// restart checker's marker queries against the CI results warehouse.
//
// Two tables back everything: workflow_job (one row per job execution,
// with its torchci classification) and push (one row per commit on a
// branch). Queries are windowed by run/commit creation time and always
// restricted to a single branch.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/caevv/autorevert/internal/ci"
)

// Config holds the connection settings for the warehouse. The caller
// resolves these from its configuration; this package never reads the
// environment.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Secure   bool
}

// Client is a ClickHouse-backed history source. It satisfies both the
// detector's HistorySource and the restart checker's Source.
type Client struct {
	conn   driver.Conn
	logger *slog.Logger
}

// New opens a connection to the warehouse.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 9440
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}

	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

const workflowCommitsQuery = `
SELECT
    workflow_name,
    head_sha,
    name,
    conclusion,
    status,
    ifNull(torchci_classification.rule, '') AS classification_rule,
    workflow_created_at
FROM workflow_job FINAL
WHERE workflow_name IN {workflow_names:Array(String)}
  AND head_branch = {branch:String}
  AND workflow_created_at >= {lookback_time:DateTime}
ORDER BY workflow_name, workflow_created_at DESC, head_sha, name
`

// WorkflowCommits returns, per workflow, the commits with job data since
// the given time, newest-first, with every job row included.
func (c *Client) WorkflowCommits(ctx context.Context, workflows []string, branch string, since time.Time) (map[string][]ci.CommitJobs, error) {
	rows, err := c.conn.Query(ctx, workflowCommitsQuery,
		clickhouse.Named("workflow_names", workflows),
		clickhouse.Named("branch", branch),
		clickhouse.Named("lookback_time", since),
	)
	if err != nil {
		return nil, fmt.Errorf("query workflow jobs: %w", err)
	}
	defer rows.Close()

	var jobRows []jobRow
	for rows.Next() {
		var r jobRow
		if err := rows.Scan(&r.workflow, &r.sha, &r.name, &r.conclusion, &r.status, &r.rule, &r.createdAt); err != nil {
			return nil, fmt.Errorf("scan workflow job row: %w", err)
		}
		jobRows = append(jobRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read workflow job rows: %w", err)
	}

	commits := groupJobRows(jobRows)
	for _, workflow := range workflows {
		c.logger.Debug("workflow commits loaded",
			"workflow", workflow,
			"commits", len(commits[workflow]))
	}
	return commits, nil
}

const commitHistoryQuery = `
SELECT DISTINCT
    head_commit.id AS sha,
    head_commit.message AS message,
    head_commit.timestamp AS timestamp
FROM push
WHERE head_commit.timestamp >= {lookback_time:DateTime}
  AND ref = {ref:String}
ORDER BY head_commit.timestamp DESC
`

// CommitHistory returns the branch's commits since the given time,
// newest-first.
func (c *Client) CommitHistory(ctx context.Context, branch string, since time.Time) ([]ci.Commit, error) {
	rows, err := c.conn.Query(ctx, commitHistoryQuery,
		clickhouse.Named("lookback_time", since),
		clickhouse.Named("ref", "refs/heads/"+branch),
	)
	if err != nil {
		return nil, fmt.Errorf("query commit history: %w", err)
	}
	defer rows.Close()

	var history []ci.Commit
	for rows.Next() {
		var commit ci.Commit
		if err := rows.Scan(&commit.SHA, &commit.Message, &commit.Timestamp); err != nil {
			return nil, fmt.Errorf("scan commit row: %w", err)
		}
		history = append(history, commit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read commit rows: %w", err)
	}
	return history, nil
}

const hasDispatchQuery = `
SELECT count() AS count
FROM workflow_job
WHERE head_sha = {commit_sha:String}
  AND workflow_event = 'workflow_dispatch'
  AND head_branch = {head_branch:String}
  AND workflow_name LIKE {workflow_pattern:String}
`

// HasDispatch reports whether the workflow was re-dispatched for the
// commit: a workflow_dispatch run on the commit's "trunk/<sha>" branch
// ref, matching the workflow name as a suffix.
func (c *Client) HasDispatch(ctx context.Context, workflowSuffix, sha string) (bool, error) {
	var count uint64
	err := c.conn.QueryRow(ctx, hasDispatchQuery,
		clickhouse.Named("commit_sha", sha),
		clickhouse.Named("head_branch", "trunk/"+sha),
		clickhouse.Named("workflow_pattern", "%"+workflowSuffix),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query dispatch marker: %w", err)
	}
	return count > 0, nil
}

const dispatchedSHAsQuery = `
SELECT DISTINCT head_sha
FROM workflow_job
WHERE workflow_event = 'workflow_dispatch'
  AND head_branch LIKE 'trunk/%'
  AND workflow_name LIKE {workflow_pattern:String}
  AND workflow_created_at >= {since_date:DateTime}
`

// DispatchedSHAs returns every commit SHA with a re-dispatched workflow
// run since the given time.
func (c *Client) DispatchedSHAs(ctx context.Context, workflowSuffix string, since time.Time) ([]string, error) {
	rows, err := c.conn.Query(ctx, dispatchedSHAsQuery,
		clickhouse.Named("workflow_pattern", "%"+workflowSuffix),
		clickhouse.Named("since_date", since),
	)
	if err != nil {
		return nil, fmt.Errorf("query dispatched commits: %w", err)
	}
	defer rows.Close()

	var shas []string
	for rows.Next() {
		var sha string
		if err := rows.Scan(&sha); err != nil {
			return nil, fmt.Errorf("scan dispatched commit: %w", err)
		}
		shas = append(shas, sha)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read dispatched commits: %w", err)
	}
	return shas, nil
}
