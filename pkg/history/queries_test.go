package history

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testDB creates a temporary database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestRun_BasicFields(t *testing.T) {
	db := testDB(t)

	preset := "fast-survey"
	created, err := db.CreateRun("run-1", &preset)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.GetRun(created.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.ID != "run-1" {
		t.Errorf("ID mismatch: got %s, want run-1", got.ID)
	}
	if got.Status != RunStatusRunning {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, RunStatusRunning)
	}
	if got.Preset == nil {
		t.Error("Preset should not be nil")
	} else if *got.Preset != preset {
		t.Errorf("Preset mismatch: got %s, want %s", *got.Preset, preset)
	}
	if got.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
	if got.ImagesTotal != 0 || got.ImagesCollected != 0 || got.NumAngles != 0 {
		t.Errorf("counters should start at zero, got (%d, %d, %d)",
			got.NumAngles, got.ImagesTotal, got.ImagesCollected)
	}
}

func TestRun_NullFieldsRemainNull(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateRun("run-null", nil)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.GetRun(created.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Preset != nil {
		t.Errorf("Preset should be nil, got %v", *got.Preset)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt should be nil, got %v", got.CompletedAt)
	}
	if got.FileName != nil {
		t.Errorf("FileName should be nil, got %v", *got.FileName)
	}
	if got.ErrorMessage != nil {
		t.Errorf("ErrorMessage should be nil, got %v", *got.ErrorMessage)
	}
}

func TestRun_PlanAndProgress(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateRun("run-plan", nil)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	fileName := "/data/sample.h5"
	if err := db.SetRunPlan(created.ID, 721, 761, &fileName); err != nil {
		t.Fatalf("SetRunPlan failed: %v", err)
	}
	if err := db.UpdateRunProgress(created.ID, "Projection", 42); err != nil {
		t.Fatalf("UpdateRunProgress failed: %v", err)
	}

	got, err := db.GetRun(created.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.NumAngles != 721 {
		t.Errorf("NumAngles = %d, want 721", got.NumAngles)
	}
	if got.ImagesTotal != 761 {
		t.Errorf("ImagesTotal = %d, want 761", got.ImagesTotal)
	}
	if got.FileName == nil || *got.FileName != fileName {
		t.Errorf("FileName = %v, want %s", got.FileName, fileName)
	}
	if got.Phase != "Projection" {
		t.Errorf("Phase = %s, want Projection", got.Phase)
	}
	if got.ImagesCollected != 42 {
		t.Errorf("ImagesCollected = %d, want 42", got.ImagesCollected)
	}
}

func TestRun_CompletedWithError(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateRun("run-err", nil)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	errMsg := "camera timed out waiting for image 12"
	if err := db.CompleteRun(created.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	got, err := db.GetRun(created.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Status != RunStatusFailed {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, RunStatusFailed)
	}
	if got.ErrorMessage == nil {
		t.Error("ErrorMessage should not be nil")
	} else if *got.ErrorMessage != errMsg {
		t.Errorf("ErrorMessage mismatch: got %s, want %s", *got.ErrorMessage, errMsg)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should not be nil after completion")
	}
}

func TestRun_GetMissing(t *testing.T) {
	db := testDB(t)

	_, err := db.GetRun("does-not-exist")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun error = %v, want sql.ErrNoRows", err)
	}
}

func TestRun_ListUsesRowsScanner(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if _, err := db.CreateRun(id, nil); err != nil {
			t.Fatalf("CreateRun %s failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(10, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}

	found := make(map[string]bool)
	for _, r := range runs {
		found[r.ID] = true
	}
	if !found["run-a"] || !found["run-b"] || !found["run-c"] {
		t.Errorf("not all runs found in results: %v", found)
	}
}

func TestGetLastRun(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetLastRun(); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetLastRun on empty database = %v, want sql.ErrNoRows", err)
	}

	db.CreateRun("older", nil)
	time.Sleep(10 * time.Millisecond)
	db.CreateRun("newer", nil)

	got, err := db.GetLastRun()
	if err != nil {
		t.Fatalf("GetLastRun failed: %v", err)
	}
	if got.ID != "newer" {
		t.Errorf("GetLastRun ID = %s, want newer", got.ID)
	}
}

func TestCountRuns(t *testing.T) {
	db := testDB(t)

	count, err := db.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	db.CreateRun("one", nil)
	db.CreateRun("two", nil)

	count, err = db.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestMarkInterrupted(t *testing.T) {
	db := testDB(t)

	db.CreateRun("interrupted", nil)
	db.CreateRun("finished", nil)
	if err := db.CompleteRun("finished", RunStatusCompleted, nil); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	if err := db.MarkInterrupted(); err != nil {
		t.Fatalf("MarkInterrupted failed: %v", err)
	}

	got, err := db.GetRun("interrupted")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunStatusFailed {
		t.Errorf("interrupted run status = %s, want %s", got.Status, RunStatusFailed)
	}
	if got.ErrorMessage == nil {
		t.Error("interrupted run should carry an error message")
	}
	if got.CompletedAt == nil {
		t.Error("interrupted run should have a completion time")
	}

	kept, err := db.GetRun("finished")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if kept.Status != RunStatusCompleted {
		t.Errorf("finished run status = %s, want %s (should be unchanged)", kept.Status, RunStatusCompleted)
	}
	if kept.ErrorMessage != nil {
		t.Errorf("finished run should have no error message, got %s", *kept.ErrorMessage)
	}
}

func TestCleanupOldRuns(t *testing.T) {
	db := testDB(t)

	oldRun, _ := db.CreateRun("old", nil)
	db.CompleteRun(oldRun.ID, RunStatusCompleted, nil)

	// Manually backdate the completed_at using embedded *sql.DB
	_, err := db.Exec(`UPDATE scan_runs SET completed_at = datetime('now', '-60 days') WHERE id = ?`, oldRun.ID)
	if err != nil {
		t.Fatalf("failed to backdate scan run: %v", err)
	}

	recentRun, _ := db.CreateRun("recent", nil)
	db.CompleteRun(recentRun.ID, RunStatusCompleted, nil)

	if err := db.CleanupOldRuns(30); err != nil {
		t.Fatalf("CleanupOldRuns failed: %v", err)
	}

	if _, err := db.GetRun(oldRun.ID); err == nil {
		t.Error("old run should have been deleted")
	}
	if _, err := db.GetRun(recentRun.ID); err != nil {
		t.Error("recent run should still exist")
	}
}

func TestPagination(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		db.CreateRun(id, nil)
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantCount int
	}{
		{"first page", 2, 0, 2},
		{"second page", 2, 2, 2},
		{"last page (partial)", 2, 4, 1},
		{"offset beyond count", 2, 10, 0},
		{"large limit", 100, 0, 5},
		// Note: LIMIT 0 returns 0 rows in SQL, not "all"
		{"zero limit returns zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := db.ListRuns(tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(runs) != tt.wantCount {
				t.Errorf("got %d runs, want %d", len(runs), tt.wantCount)
			}
		})
	}
}
