package detector

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/caevv/autorevert/internal/ci"
)

const targetSHA = "abc123def456abc123def456abc123def456abcd"

func revertMessage(sha string) string {
	return "Revert \"Fix flaky dataloader test\"\n\nThis reverts commit " + sha + "."
}

func TestIsRevertCommit(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"revert message", revertMessage(targetSHA), true},
		{"prefix only", `Revert "something"`, false},
		{"marker only", "This reverts commit " + targetSHA, false},
		{"prefix not at start", `See Revert "x"` + "\nThis reverts commit abc", false},
		{"regular commit", "Fix flaky dataloader test", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRevertCommit(tt.message); got != tt.want {
				t.Errorf("IsRevertCommit(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestIsCommitReverted(t *testing.T) {
	history := []ci.Commit{
		{SHA: "newest", Message: "Unrelated work", Timestamp: baseTime.Add(5 * time.Hour)},
		{SHA: "revert1", Message: revertMessage(targetSHA), Timestamp: baseTime.Add(3 * time.Hour)},
		{SHA: targetSHA, Message: "Break the build", Timestamp: baseTime},
		{SHA: "older", Message: "Earlier work", Timestamp: baseTime.Add(-2 * time.Hour)},
	}
	src := &fakeSource{history: history}
	c := newChecker(src)

	match, err := c.IsCommitReverted(context.Background(), targetSHA)
	if err != nil {
		t.Fatalf("IsCommitReverted() error = %v", err)
	}
	if match == nil {
		t.Fatal("IsCommitReverted() = nil, want match")
	}
	if match.SHA != "revert1" {
		t.Errorf("match.SHA = %s, want revert1", match.SHA)
	}
	if got, want := match.HoursAfterTarget, 3.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("HoursAfterTarget = %v, want %v", got, want)
	}
}

func TestIsCommitRevertedExactSHAOnly(t *testing.T) {
	truncated := targetSHA[:12]
	upper := strings.ToUpper(targetSHA)

	history := []ci.Commit{
		{SHA: "r1", Message: revertMessage(truncated), Timestamp: baseTime.Add(2 * time.Hour)},
		{SHA: "r2", Message: revertMessage(upper), Timestamp: baseTime.Add(1 * time.Hour)},
		{SHA: targetSHA, Message: "Break the build", Timestamp: baseTime},
	}
	src := &fakeSource{history: history}
	c := newChecker(src)

	match, err := c.IsCommitReverted(context.Background(), targetSHA)
	if err != nil {
		t.Fatalf("IsCommitReverted() error = %v", err)
	}
	if match != nil {
		t.Errorf("IsCommitReverted() matched %+v; truncated or re-cased SHAs must not match", match)
	}
}

func TestIsCommitRevertedUnknownTarget(t *testing.T) {
	src := &fakeSource{history: []ci.Commit{
		{SHA: "a", Message: "work", Timestamp: baseTime},
	}}
	c := newChecker(src)

	match, err := c.IsCommitReverted(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("IsCommitReverted() error = %v", err)
	}
	if match != nil {
		t.Errorf("IsCommitReverted() = %+v, want nil for unknown target", match)
	}
}

func TestIsCommitRevertedFirstMatchInSuppliedOrder(t *testing.T) {
	// Two reverts reference the same SHA. The scan preserves the order the
	// history source supplies (newest-first here), so the first candidate
	// encountered wins even though the other is earlier in time.
	history := []ci.Commit{
		{SHA: "revert-late", Message: revertMessage(targetSHA), Timestamp: baseTime.Add(6 * time.Hour)},
		{SHA: "revert-early", Message: revertMessage(targetSHA), Timestamp: baseTime.Add(1 * time.Hour)},
		{SHA: targetSHA, Message: "Break the build", Timestamp: baseTime},
	}
	src := &fakeSource{history: history}
	c := newChecker(src)

	match, err := c.IsCommitReverted(context.Background(), targetSHA)
	if err != nil {
		t.Fatalf("IsCommitReverted() error = %v", err)
	}
	if match == nil || match.SHA != "revert-late" {
		t.Errorf("match = %+v, want revert-late (first in supplied order)", match)
	}
}

func TestIsCommitRevertedIgnoresEarlierCommits(t *testing.T) {
	// A revert-shaped message before the target's timestamp is not a revert
	// of the target.
	history := []ci.Commit{
		{SHA: targetSHA, Message: "Break the build", Timestamp: baseTime},
		{SHA: "r0", Message: revertMessage(targetSHA), Timestamp: baseTime.Add(-1 * time.Hour)},
	}
	src := &fakeSource{history: history}
	c := newChecker(src)

	match, err := c.IsCommitReverted(context.Background(), targetSHA)
	if err != nil {
		t.Fatalf("IsCommitReverted() error = %v", err)
	}
	if match != nil {
		t.Errorf("match = %+v, want nil", match)
	}
}

func TestRevertCommits(t *testing.T) {
	history := []ci.Commit{
		{SHA: "a", Message: revertMessage("111"), Timestamp: baseTime.Add(2 * time.Hour)},
		{SHA: "b", Message: "Normal commit", Timestamp: baseTime.Add(1 * time.Hour)},
		{SHA: "c", Message: revertMessage("222"), Timestamp: baseTime},
	}
	src := &fakeSource{history: history}
	c := newChecker(src)

	reverts, err := c.RevertCommits(context.Background())
	if err != nil {
		t.Fatalf("RevertCommits() error = %v", err)
	}
	if len(reverts) != 2 {
		t.Fatalf("got %d reverts, want 2", len(reverts))
	}
	if reverts[0].SHA != "a" || reverts[1].SHA != "c" {
		t.Errorf("reverts = %v, want [a c] in history order", reverts)
	}

	if src.historyFetches != 1 {
		t.Errorf("history fetched %d times, want 1", src.historyFetches)
	}
	// Second call hits the cache.
	if _, err := c.RevertCommits(context.Background()); err != nil {
		t.Fatalf("RevertCommits() error = %v", err)
	}
	if src.historyFetches != 1 {
		t.Errorf("history fetched %d times after second call, want 1", src.historyFetches)
	}
}
