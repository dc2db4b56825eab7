package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T, name string) *HistoryDB {
	t.Helper()
	db, err := NewHistoryDB(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

// TestDatabaseCreation verifies database file creation, including a missing
// parent directory
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := NewHistoryDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t, "wal.db")

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaCreation verifies all tables and indexes are created
func TestSchemaCreation(t *testing.T) {
	db := openTestDB(t, "schema.db")

	for _, table := range []string{"actions", "verdicts", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}

	var version int
	if err := db.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Errorf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	expectedIndexes := []string{
		"idx_actions_run",
		"idx_actions_timestamp",
		"idx_actions_action",
		"idx_actions_path",
		"idx_verdicts_run",
		"idx_verdicts_encoding",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", idx, err)
		}
	}
}

// TestRecordAction verifies an action round-trips with its failure details
func TestRecordAction(t *testing.T) {
	db := openTestDB(t, "actions.db")

	err := db.RecordAction(ActionRecord{
		RunID:      "run-1",
		Action:     ActionDelete,
		Path:       "/tmp/ut-testcon/a.cpp",
		ObjectType: "file",
		Size:       42,
	})
	if err != nil {
		t.Fatalf("Failed to record action: %v", err)
	}
	err = db.RecordAction(ActionRecord{
		RunID:        "run-1",
		Action:       ActionError,
		Path:         "/tmp/ut-testcon/locked",
		ObjectType:   "file",
		FailureKind:  "delete_failed",
		ErrorMessage: "unlink /tmp/ut-testcon/locked: permission denied",
	})
	if err != nil {
		t.Fatalf("Failed to record action: %v", err)
	}

	records, err := db.GetActionsByRun("run-1")
	if err != nil {
		t.Fatalf("GetActionsByRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Action != ActionDelete || first.Size != 42 || first.FileName != "a.cpp" {
		t.Errorf("Unexpected first record: %+v", first)
	}
	if first.FailureKind != "" || first.ErrorMessage != "" {
		t.Errorf("Expected empty failure fields, got %q / %q", first.FailureKind, first.ErrorMessage)
	}
	if first.Timestamp.IsZero() {
		t.Error("Timestamp should be stamped on insert")
	}

	second := records[1]
	if second.FailureKind != "delete_failed" {
		t.Errorf("Expected failure kind delete_failed, got %q", second.FailureKind)
	}
	if second.ErrorMessage == "" {
		t.Error("Expected error message to be stored")
	}
}

// TestRecordVerdict verifies verdicts are stored per run
func TestRecordVerdict(t *testing.T) {
	db := openTestDB(t, "verdicts.db")

	verdicts := []VerdictRecord{
		{RunID: "run-2", Path: "/w/a.cpp", Encoding: "UTF-8 BOM", Verdict: VerdictLoaded, Size: 10},
		{RunID: "run-2", Path: "/w/b.cpp", Encoding: "UTF-32LE", Verdict: VerdictRejected, Size: 35,
			ErrorMessage: "UTF-32LE encoding is not supported: /w/b.cpp"},
		{RunID: "run-3", Path: "/w/c.cpp", Encoding: "8-bit", Verdict: VerdictLoaded},
	}
	for _, v := range verdicts {
		if err := db.RecordVerdict(v); err != nil {
			t.Fatalf("Failed to record verdict: %v", err)
		}
	}

	records, err := db.GetVerdictsByRun("run-2")
	if err != nil {
		t.Fatalf("GetVerdictsByRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 verdicts, got %d", len(records))
	}
	if records[1].Verdict != VerdictRejected || records[1].ErrorMessage == "" {
		t.Errorf("Unexpected rejected verdict: %+v", records[1])
	}

	recent, err := db.GetRecentVerdicts(1)
	if err != nil {
		t.Fatalf("GetRecentVerdicts failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Path != "/w/c.cpp" {
		t.Errorf("Expected most recent verdict for /w/c.cpp, got %+v", recent)
	}
}

// TestQueryMethods verifies the action filters
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t, "query.db")

	seed := []ActionRecord{
		{RunID: "r", Action: ActionDelete, Path: "/w/a.cpp", ObjectType: "file", Size: 100},
		{RunID: "r", Action: ActionDelete, Path: "/w/sub", ObjectType: "directory"},
		{RunID: "r", Action: ActionSkip, Path: "/w/link", ObjectType: "other"},
		{RunID: "r", Action: ActionDryRun, Path: "/x/b.cpp", ObjectType: "file", Size: 7},
	}
	for _, r := range seed {
		if err := db.RecordAction(r); err != nil {
			t.Fatalf("Failed to seed: %v", err)
		}
	}

	t.Run("Recent", func(t *testing.T) {
		records, err := db.GetRecentActions(2)
		if err != nil {
			t.Fatalf("GetRecentActions failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].Path != "/x/b.cpp" {
			t.Errorf("Expected newest record first, got %s", records[0].Path)
		}
	})

	t.Run("ByAction", func(t *testing.T) {
		records, err := db.GetActionsByAction(ActionDelete, 10)
		if err != nil {
			t.Fatalf("GetActionsByAction failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 DELETE records, got %d", len(records))
		}
	})

	t.Run("ByPath", func(t *testing.T) {
		records, err := db.GetActionsByPath("/w/%", 10)
		if err != nil {
			t.Fatalf("GetActionsByPath failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 records under /w, got %d", len(records))
		}
	})

	t.Run("SpaceFreed", func(t *testing.T) {
		total, err := db.GetTotalSpaceFreed(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("GetTotalSpaceFreed failed: %v", err)
		}
		if total != 100 {
			t.Errorf("Expected 100 bytes freed (dry runs excluded), got %d", total)
		}
	})
}

// TestHistoryStats verifies statistics gathering
func TestHistoryStats(t *testing.T) {
	db := openTestDB(t, "stats.db")

	actions := []ActionRecord{
		{RunID: "r", Action: ActionDelete, Path: "/w/a", ObjectType: "file", Size: 10},
		{RunID: "r", Action: ActionDelete, Path: "/w/b", ObjectType: "file", Size: 20},
		{RunID: "r", Action: ActionSkip, Path: "/w/l", ObjectType: "other"},
		{RunID: "r", Action: ActionError, Path: "/w/c", ObjectType: "file", FailureKind: "delete_failed"},
		{RunID: "r", Action: ActionError, Path: "/w/d", ObjectType: "directory", FailureKind: "open_failed"},
	}
	for _, a := range actions {
		if err := db.RecordAction(a); err != nil {
			t.Fatalf("Failed to seed action: %v", err)
		}
	}
	for _, v := range []VerdictRecord{
		{RunID: "p", Path: "/w/x", Encoding: "UTF-16LE", Verdict: VerdictLoaded},
		{RunID: "p", Path: "/w/y", Encoding: "UTF-32LE", Verdict: VerdictRejected},
	} {
		if err := db.RecordVerdict(v); err != nil {
			t.Fatalf("Failed to seed verdict: %v", err)
		}
	}

	stats, err := db.GetHistoryStats(7)
	if err != nil {
		t.Fatalf("GetHistoryStats failed: %v", err)
	}

	if stats.TotalDeleted != 2 || stats.TotalSkipped != 1 || stats.TotalErrors != 2 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.TotalSpaceFreed != 30 {
		t.Errorf("Expected 30 bytes freed, got %d", stats.TotalSpaceFreed)
	}
	if stats.ByFailureKind["delete_failed"] != 1 || stats.ByFailureKind["open_failed"] != 1 {
		t.Errorf("Unexpected failure breakdown: %v", stats.ByFailureKind)
	}
	if stats.ByEncoding["UTF-32LE"] != 1 || stats.ByVerdict[VerdictRejected] != 1 {
		t.Errorf("Unexpected verdict breakdown: %v / %v", stats.ByEncoding, stats.ByVerdict)
	}

	dbStats, err := db.GetDatabaseStats()
	if err != nil {
		t.Fatalf("GetDatabaseStats failed: %v", err)
	}
	if dbStats["action_records"].(int64) != 5 {
		t.Errorf("Expected 5 action records, got %v", dbStats["action_records"])
	}
	if dbStats["runs"].(int64) != 2 {
		t.Errorf("Expected 2 runs, got %v", dbStats["runs"])
	}
}

// TestDeleteOldRecords verifies retention pruning on both tables
func TestDeleteOldRecords(t *testing.T) {
	db := openTestDB(t, "retention.db")

	old := time.Now().AddDate(0, 0, -40)
	if err := db.RecordAction(ActionRecord{RunID: "old", Timestamp: old, Action: ActionDelete, Path: "/w/old", ObjectType: "file"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.RecordVerdict(VerdictRecord{RunID: "old", Timestamp: old, Path: "/w/old", Encoding: "8-bit", Verdict: VerdictLoaded}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.RecordAction(ActionRecord{RunID: "new", Action: ActionDelete, Path: "/w/new", ObjectType: "file"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 records pruned, got %d", n)
	}

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}

	records, err := db.GetRecentActions(10)
	if err != nil {
		t.Fatalf("GetRecentActions failed: %v", err)
	}
	if len(records) != 1 || records[0].Path != "/w/new" {
		t.Errorf("Expected only the new record to survive, got %+v", records)
	}
}

// TestConcurrentReadWrite verifies concurrent read and write operations
func TestConcurrentReadWrite(t *testing.T) {
	db := openTestDB(t, "concurrent.db")

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			err := db.RecordAction(ActionRecord{
				RunID:      "concurrent",
				Action:     ActionDelete,
				Path:       fmt.Sprintf("/w/file%d", i),
				ObjectType: "file",
				Size:       1,
			})
			if err != nil {
				errs <- fmt.Errorf("writer error: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := db.GetRecentActions(10); err != nil {
					errs <- fmt.Errorf("reader %d: %v", id, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent read/write error: %v", err)
	}
}

// TestDatabaseErrorHandling verifies an unusable path is reported
func TestDatabaseErrorHandling(t *testing.T) {
	_, err := NewHistoryDB("/dev/null/invalid/path/db.sqlite")
	if err == nil {
		t.Error("Expected error for invalid database path")
	}
}
