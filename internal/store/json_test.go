package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caevv/autorevert/internal/detector"
)

func TestNewJSONStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	store, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer store.Close()

	if store == nil {
		t.Fatal("NewJSONStore() returned nil store")
	}
}

func TestJSONStore_SaveAndGetRun(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	store, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer store.Close()

	run := newTestRun("test-run-1", time.Now())
	run.EndTime = run.StartTime.Add(5 * time.Second)
	run.Patterns = []detector.Pattern{
		{Workflow: "pull", Rule: "sccache failure", TargetSHA: "abc123"},
	}
	run.Dispatches = []Dispatch{
		{Workflow: "trunk", SHA: "abc123", DispatchedAt: time.Now()},
	}

	err = store.SaveRun(run)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("JSON file was not created")
	}

	got, err := store.GetRun("test-run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if got.RunID != run.RunID {
		t.Errorf("RunID = %v, want %v", got.RunID, run.RunID)
	}
	if len(got.Patterns) != 1 || got.Patterns[0].Rule != "sccache failure" {
		t.Errorf("Patterns = %+v, want one sccache failure pattern", got.Patterns)
	}
	if len(got.Dispatches) != 1 || got.Dispatches[0].SHA != "abc123" {
		t.Errorf("Dispatches = %+v, want one for abc123", got.Dispatches)
	}
}

func TestJSONStore_PersistenceAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	store, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}

	run := newTestRun("persistent-run", time.Now())
	run.CommitsScanned = 77
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	store.Close()

	reopened, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun("persistent-run")
	if err != nil {
		t.Fatalf("GetRun() after reopen error = %v", err)
	}
	if got.CommitsScanned != 77 {
		t.Errorf("CommitsScanned = %v, want 77", got.CommitsScanned)
	}
}

func TestJSONStore_GetRuns(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	store, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer store.Close()

	now := time.Now()
	for i := 0; i < 5; i++ {
		run := newTestRun(fmt.Sprintf("run-%d", i), now.Add(-time.Duration(i)*time.Hour))
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	got, err := store.GetRuns(10)
	if err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}

	if len(got) != 5 {
		t.Errorf("GetRuns() returned %d runs, want 5", len(got))
	}

	// run-0 has the newest start time
	if got[0].RunID != "run-0" {
		t.Errorf("first run = %v, want run-0", got[0].RunID)
	}

	got, err = store.GetRuns(3)
	if err != nil {
		t.Fatalf("GetRuns() with limit error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("GetRuns() with limit=3 returned %d runs, want 3", len(got))
	}
}

func TestJSONStore_GetRunNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	store, err := NewJSONStore(dbPath)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer store.Close()

	_, err = store.GetRun("missing")
	if err == nil {
		t.Error("expected error for missing run")
	}
}

func TestJSONStore_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.json")

	if err := os.WriteFile(dbPath, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	_, err := NewJSONStore(dbPath)
	if err == nil {
		t.Error("expected error for corrupt JSON file")
	}
}

func TestNewStore_Factory(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		driver  string
		path    string
		wantErr bool
	}{
		{"bbolt driver", "bbolt", filepath.Join(tmpDir, "f.db"), false},
		{"json driver", "json", filepath.Join(tmpDir, "f.json"), false},
		{"driver case insensitive", "BBolt", filepath.Join(tmpDir, "f2.db"), false},
		{"unknown driver", "sqlite", filepath.Join(tmpDir, "f.sqlite"), true},
		{"empty path", "bbolt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.driver, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}
