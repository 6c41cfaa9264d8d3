package clickhouse

import (
	"sort"
	"time"

	"github.com/caevv/autorevert/internal/ci"
)

// jobRow is one scanned row from the workflow_job table.
type jobRow struct {
	workflow   string
	sha        string
	name       string
	conclusion string
	status     string
	rule       string
	createdAt  time.Time
}

// groupJobRows folds flat job rows into per-workflow commit groups, sorted
// newest-first. The first row seen for a commit fixes its creation time,
// matching the row order of the query (created_at DESC within a workflow).
func groupJobRows(rows []jobRow) map[string][]ci.CommitJobs {
	type key struct {
		workflow string
		sha      string
	}

	index := make(map[key]int)
	grouped := make(map[string][]ci.CommitJobs)

	for _, r := range rows {
		k := key{r.workflow, r.sha}
		idx, ok := index[k]
		if !ok {
			grouped[r.workflow] = append(grouped[r.workflow], ci.CommitJobs{
				SHA:       r.sha,
				CreatedAt: r.createdAt,
			})
			idx = len(grouped[r.workflow]) - 1
			index[k] = idx
		}
		commit := &grouped[r.workflow][idx]
		commit.Jobs = append(commit.Jobs, ci.JobResult{
			SHA:          r.sha,
			Name:         r.name,
			Conclusion:   r.conclusion,
			Status:       r.status,
			Rule:         r.rule,
			RunCreatedAt: r.createdAt,
		})
	}

	for workflow := range grouped {
		commits := grouped[workflow]
		sort.SliceStable(commits, func(i, j int) bool {
			return commits[i].CreatedAt.After(commits[j].CreatedAt)
		})
	}
	return grouped
}
