package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := Job{
		Entity:    "requests",
		Format:    "jsonl",
		Output:    "requests-export.jsonl",
		Requested: 100,
		Exported:  100,
		Status:    StatusCompleted,
		StartedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Duration:  3 * time.Second,
	}
	second := Job{
		Entity:    "sessions",
		Format:    "csv",
		Output:    "sessions-export.csv",
		Requested: 50,
		Exported:  20,
		Status:    StatusFailed,
		Error:     "server error (HTTP 502)",
		StartedAt: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
		Duration:  time.Second,
	}

	id1, err := store.Record(ctx, first)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	id2, err := store.Record(ctx, second)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Errorf("expected distinct non-empty job ids, got %q and %q", id1, id2)
	}

	jobs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Recent returned %d jobs, want 2", len(jobs))
	}

	// Newest first.
	if jobs[0].Entity != "sessions" || jobs[1].Entity != "requests" {
		t.Errorf("unexpected order: %s then %s", jobs[0].Entity, jobs[1].Entity)
	}
	if jobs[0].Status != StatusFailed || jobs[0].Error == "" {
		t.Errorf("failed job not recorded faithfully: %+v", jobs[0])
	}
	if jobs[1].Exported != 100 || jobs[1].Duration != 3*time.Second {
		t.Errorf("job fields mismatch: %+v", jobs[1])
	}
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := Job{
			Entity:    "requests",
			Format:    "jsonl",
			Output:    "out.jsonl",
			Status:    StatusCompleted,
			StartedAt: time.Date(2024, 6, 1, 10, i, 0, 0, time.UTC),
		}
		if _, err := store.Record(ctx, job); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	jobs, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("Recent(3) returned %d jobs", len(jobs))
	}
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, Job{Entity: "requests", Format: "json", Status: StatusCompleted, StartedAt: time.Now()}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 1 {
		t.Errorf("Clear removed %d rows, want 1", n)
	}

	jobs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("history not empty after Clear: %d jobs", len(jobs))
	}
}
