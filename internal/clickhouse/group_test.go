package clickhouse

import (
	"testing"
	"time"
)

func TestGroupJobRows(t *testing.T) {
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	rows := []jobRow{
		{workflow: "trunk", sha: "new", name: "build", conclusion: "success", status: "completed", createdAt: base},
		{workflow: "trunk", sha: "new", name: "test", conclusion: "failure", status: "completed", rule: "rule X", createdAt: base},
		{workflow: "trunk", sha: "old", name: "build", conclusion: "success", status: "completed", createdAt: base.Add(-2 * time.Hour)},
		{workflow: "pull", sha: "new", name: "lint", conclusion: "success", status: "completed", createdAt: base},
	}

	grouped := groupJobRows(rows)

	if len(grouped) != 2 {
		t.Fatalf("got %d workflows, want 2", len(grouped))
	}

	trunk := grouped["trunk"]
	if len(trunk) != 2 {
		t.Fatalf("trunk has %d commits, want 2", len(trunk))
	}
	if trunk[0].SHA != "new" || trunk[1].SHA != "old" {
		t.Errorf("trunk commits = [%s %s], want newest-first [new old]", trunk[0].SHA, trunk[1].SHA)
	}
	if len(trunk[0].Jobs) != 2 {
		t.Errorf("commit new has %d jobs, want 2", len(trunk[0].Jobs))
	}
	if got := trunk[0].Jobs[1].Rule; got != "rule X" {
		t.Errorf("job rule = %q, want %q", got, "rule X")
	}

	if len(grouped["pull"]) != 1 {
		t.Errorf("pull has %d commits, want 1", len(grouped["pull"]))
	}
}

func TestGroupJobRowsSortsOutOfOrderCommits(t *testing.T) {
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	rows := []jobRow{
		{workflow: "trunk", sha: "old", name: "a", createdAt: base.Add(-3 * time.Hour)},
		{workflow: "trunk", sha: "new", name: "a", createdAt: base},
		{workflow: "trunk", sha: "mid", name: "a", createdAt: base.Add(-1 * time.Hour)},
	}

	trunk := groupJobRows(rows)["trunk"]
	want := []string{"new", "mid", "old"}
	for i, sha := range want {
		if trunk[i].SHA != sha {
			t.Fatalf("commit[%d] = %s, want %s (newest-first)", i, trunk[i].SHA, sha)
		}
	}
}

func TestGroupJobRowsEmpty(t *testing.T) {
	if got := groupJobRows(nil); len(got) != 0 {
		t.Errorf("groupJobRows(nil) = %v, want empty", got)
	}
}
