package restart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
)

// Dispatcher re-triggers workflows for a commit through the GitHub API. It
// creates a lightweight tag "trunk/<sha>" (if absent) and dispatches the
// workflow against that tag, which is what the restart checker later finds
// as the marker.
type Dispatcher struct {
	client *github.Client
	owner  string
	repo   string
	dryRun bool
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher for the given repository. With dryRun
// set, Restart logs what it would do without calling the API.
func NewDispatcher(client *github.Client, owner, repo string, dryRun bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client: client,
		owner:  owner,
		repo:   repo,
		dryRun: dryRun,
		logger: logger,
	}
}

// Restart dispatches the workflow file (e.g. "trunk.yml") for the commit.
func (d *Dispatcher) Restart(ctx context.Context, workflowFile, sha string, inputs map[string]interface{}) error {
	tag := "trunk/" + sha

	if d.dryRun {
		d.logger.Info("dry run: would dispatch workflow",
			"workflow", workflowFile,
			"sha", sha,
			"tag", tag)
		return nil
	}

	exists, err := d.tagExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("check tag %s: %w", tag, err)
	}
	if !exists {
		if err := d.createTag(ctx, tag, sha); err != nil {
			return fmt.Errorf("create tag %s: %w", tag, err)
		}
		d.logger.Info("created tag", "tag", tag, "sha", sha)
	}

	event := github.CreateWorkflowDispatchEventRequest{Ref: tag}
	if inputs != nil {
		event.Inputs = inputs
	}
	if _, err := d.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, d.owner, d.repo, workflowFile, event); err != nil {
		return fmt.Errorf("dispatch workflow %s for %s: %w", workflowFile, sha, err)
	}

	d.logger.Info("dispatched workflow", "workflow", workflowFile, "ref", tag)
	return nil
}

func (d *Dispatcher) tagExists(ctx context.Context, tag string) (bool, error) {
	_, resp, err := d.client.Git.GetRef(ctx, d.owner, d.repo, "tags/"+tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) createTag(ctx context.Context, tag, sha string) error {
	ref := &github.Reference{
		Ref:    github.String("refs/tags/" + tag),
		Object: &github.GitObject{SHA: github.String(sha)},
	}
	_, _, err := d.client.Git.CreateRef(ctx, d.owner, d.repo, ref)
	return err
}

// RecentRuns returns the most recent runs of a workflow file.
func (d *Dispatcher) RecentRuns(ctx context.Context, workflowFile string, limit int) ([]*github.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	}
	runs, _, err := d.client.Actions.ListWorkflowRunsByFileName(ctx, d.owner, d.repo, workflowFile, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", workflowFile, err)
	}
	return runs.WorkflowRuns, nil
}
