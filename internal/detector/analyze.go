package detector

import (
	"context"
	"strings"

	"github.com/caevv/autorevert/internal/ci"
)

// CommitContext is the window surrounding one target commit, used by the
// debug command to explain why a pattern was or was not detected.
type CommitContext struct {
	Target    *ci.CommitJobs
	Lookback  []ci.CommitJobs
	Lookahead []ci.CommitJobs
}

// RuleVerdict is the per-rule outcome of pattern evaluation for one target.
type RuleVerdict struct {
	Rule          string
	InLookback    bool
	LookaheadSHAs []string
	Detected      bool
}

// AnalyzeCommit locates a commit by (possibly short) SHA prefix within one
// workflow's history and returns it together with its lookback and
// lookahead windows. Returns nil when no commit matches.
func (c *Checker) AnalyzeCommit(ctx context.Context, workflow, shaPrefix string) (*CommitContext, error) {
	commits, err := c.WorkflowCommits(ctx, workflow)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range commits {
		if strings.HasPrefix(commits[i].SHA, shaPrefix) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	target := &commits[idx]
	targetTime := target.CreatedAt

	lookbackEnd := idx + 1
	for lookbackEnd < len(commits) && targetTime.Sub(commits[lookbackEnd].CreatedAt) <= c.window {
		lookbackEnd++
	}
	lookaheadStart := idx
	for lookaheadStart > 0 && commits[lookaheadStart-1].CreatedAt.Sub(targetTime) <= c.window {
		lookaheadStart--
	}

	return &CommitContext{
		Target:    target,
		Lookback:  commits[idx+1 : lookbackEnd],
		Lookahead: commits[lookaheadStart:idx],
	}, nil
}

// RuleVerdicts evaluates every failure rule on the target against its
// windows, mirroring the detection algorithm. Pending targets yield no
// verdicts with Detected set, since pending data disqualifies a target.
func (cc *CommitContext) RuleVerdicts() []RuleVerdict {
	if cc.Target == nil {
		return nil
	}

	pending := cc.Target.HasPendingJobs()

	var verdicts []RuleVerdict
	for _, rule := range sortedRules(cc.Target.FailureRules()) {
		v := RuleVerdict{Rule: rule}
		v.InLookback = anyCommitHasRule(cc.Lookback, rule)

		for j := len(cc.Lookahead) - 1; j >= 0; j-- {
			if cc.Lookahead[j].HasFailureRule(rule) {
				v.LookaheadSHAs = append(v.LookaheadSHAs, cc.Lookahead[j].SHA)
			}
		}

		v.Detected = !pending && !v.InLookback && len(v.LookaheadSHAs) > 0
		verdicts = append(verdicts, v)
	}
	return verdicts
}
