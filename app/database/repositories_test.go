package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/click2job/jobfeed/app/feed"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestFeedRepositoryUpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	id, err := repo.UpsertFeed("alpha", "https://example.com/a.xml", "job", `[{"target":"category","static":"IT"}]`, "partner A")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("Expected non-empty feed id")
	}

	dbFeed, err := repo.GetFeed("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if dbFeed == nil {
		t.Fatal("Expected feed, got nil")
	}
	if dbFeed.ID != id {
		t.Errorf("Expected id '%s', got '%s'", id, dbFeed.ID)
	}
	if dbFeed.Status != FeedStatusActive {
		t.Errorf("Expected status active, got '%s'", dbFeed.Status)
	}
	if dbFeed.RecordTag != "job" {
		t.Errorf("Expected record tag 'job', got '%s'", dbFeed.RecordTag)
	}
	if dbFeed.Notes != "partner A" {
		t.Errorf("Expected notes 'partner A', got '%s'", dbFeed.Notes)
	}

	// Upsert again keeps the id and does not touch runtime state.
	if err := repo.SetFeedStatus(id, FeedStatusError); err != nil {
		t.Fatal(err)
	}
	id2, err := repo.UpsertFeed("alpha", "https://example.com/a2.xml", "vacancy", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Errorf("Expected stable id on upsert, got '%s' and '%s'", id, id2)
	}

	dbFeed, _ = repo.GetFeed("alpha")
	if dbFeed.URL != "https://example.com/a2.xml" {
		t.Errorf("Expected updated URL, got '%s'", dbFeed.URL)
	}
	if dbFeed.RecordTag != "vacancy" {
		t.Errorf("Expected updated record tag, got '%s'", dbFeed.RecordTag)
	}
	if dbFeed.Status != FeedStatusError {
		t.Errorf("Expected error status preserved on config sync, got '%s'", dbFeed.Status)
	}
}

func TestFeedRepositoryGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	dbFeed, err := repo.GetFeed("nope")
	if err != nil {
		t.Fatal(err)
	}
	if dbFeed != nil {
		t.Error("Expected nil for missing feed")
	}

	dbFeed, err = repo.GetFeedByID("nope")
	if err != nil {
		t.Fatal(err)
	}
	if dbFeed != nil {
		t.Error("Expected nil for missing feed id")
	}
}

func TestFeedRepositoryActiveFeedsAndLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	idA, _ := repo.UpsertFeed("alpha", "https://example.com/a.xml", "job", "", "")
	idB, _ := repo.UpsertFeed("beta", "https://example.com/b.xml", "job", "", "")
	repo.SetFeedStatus(idB, FeedStatusPaused)

	active, err := repo.GetActiveFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Name != "alpha" {
		t.Errorf("Expected only 'alpha' active, got %v", active)
	}

	all, err := repo.GetAllFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 feeds, got %d", len(all))
	}

	now := time.Now().UTC()
	if err := repo.MarkDownloaded(idA, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordImport(idA, 7, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordImport(idA, 3, now); err != nil {
		t.Fatal(err)
	}

	dbFeed, _ := repo.GetFeedByID(idA)
	if dbFeed.LastDownloadAt == nil {
		t.Error("Expected last download timestamp")
	}
	if dbFeed.TotalJobsImported != 10 {
		t.Errorf("Expected running total 10, got %d", dbFeed.TotalJobsImported)
	}
	if dbFeed.LastImportAt == nil {
		t.Error("Expected last import timestamp")
	}
}

func TestChunkRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	repo := NewChunkRepository(db)

	feedID, _ := feedRepo.UpsertFeed("alpha", "https://example.com/a.xml", "job", "", "")

	id0, err := repo.CreateChunk(feedID, "alpha", 0, `[{"title":"A"}]`)
	if err != nil {
		t.Fatal(err)
	}
	id1, _ := repo.CreateChunk(feedID, "alpha", 1, `[{"title":"B"}]`)

	pending, err := repo.GetPending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending chunks, got %d", len(pending))
	}
	if pending[0].ChunkIndex != 0 || pending[1].ChunkIndex != 1 {
		t.Errorf("Expected chunks in index order, got %d then %d", pending[0].ChunkIndex, pending[1].ChunkIndex)
	}

	if err := repo.MarkProcessing([]string{id0, id1}); err != nil {
		t.Fatal(err)
	}
	count, _ := repo.CountByStatus(ChunkStatusPending)
	if count != 0 {
		t.Errorf("Expected 0 pending after claim, got %d", count)
	}

	if err := repo.FinishChunk(id0, ChunkStatusDone, 5, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.FinishChunk(id1, ChunkStatusError, 0, "boom"); err != nil {
		t.Fatal(err)
	}

	errored, err := repo.GetRecentErrors(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errored) != 1 {
		t.Fatalf("Expected 1 errored chunk, got %d", len(errored))
	}
	if errored[0].ErrorMessage != "boom" {
		t.Errorf("Expected error message 'boom', got '%s'", errored[0].ErrorMessage)
	}
}

func TestChunkRepositoryDeletePending(t *testing.T) {
	db := setupTestDB(t)
	feedRepo := NewFeedRepository(db)
	repo := NewChunkRepository(db)

	feedID, _ := feedRepo.UpsertFeed("alpha", "https://example.com/a.xml", "job", "", "")
	otherID, _ := feedRepo.UpsertFeed("beta", "https://example.com/b.xml", "job", "", "")

	doneID, _ := repo.CreateChunk(feedID, "alpha", 0, `[]`)
	repo.FinishChunk(doneID, ChunkStatusDone, 0, "")
	repo.CreateChunk(feedID, "alpha", 1, `[]`)
	repo.CreateChunk(otherID, "beta", 0, `[]`)

	deleted, err := repo.DeletePending(feedID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 pending chunk deleted, got %d", deleted)
	}

	// The other feed's pending chunk and the finished chunk survive.
	count, _ := repo.CountByStatus(ChunkStatusPending)
	if count != 1 {
		t.Errorf("Expected 1 pending chunk left, got %d", count)
	}
	count, _ = repo.CountByStatus(ChunkStatusDone)
	if count != 1 {
		t.Errorf("Expected done chunk untouched, got %d", count)
	}
}

func TestJobRepositoryBulkCreateAndExternalIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	salary := 28000
	records := []feed.JobRecord{
		{Title: "Dev", Source: "alpha", ExternalID: "f1_1", SalaryMin: &salary, IsActive: true},
		{Title: "Ops", Source: "alpha", ExternalID: "f1_2", IsActive: true},
		{Title: "NoID", Source: "alpha", IsActive: true},
		{Title: "Other", Source: "beta", ExternalID: "f2_1", IsActive: true},
	}

	inserted, err := repo.BulkCreate(records)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 4 {
		t.Errorf("Expected 4 inserted, got %d", inserted)
	}

	count, err := repo.GetJobCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("Expected 4 jobs, got %d", count)
	}

	ids, err := repo.GetExternalIDs("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 external ids for 'alpha', got %d", len(ids))
	}
	if !ids["f1_1"] || !ids["f1_2"] {
		t.Errorf("Expected f1_1 and f1_2 in id set, got %v", ids)
	}
	if ids["f2_1"] {
		t.Error("Expected other source's ids excluded")
	}
}

func TestJobRepositoryBulkCreateEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	inserted, err := repo.BulkCreate(nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted, got %d", inserted)
	}
}

func TestImportLogRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImportLogRepository(db)

	err := repo.CreateLog(ImportLog{
		FeedID:          "f1",
		FeedName:        "alpha",
		Status:          ImportStatusSuccess,
		ChunksProcessed: 4,
		JobsImported:    12,
		JobsSkipped:     3,
		DurationSeconds: 1.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = repo.CreateLog(ImportLog{
		FeedID:       "f1",
		FeedName:     "alpha",
		Status:       ImportStatusError,
		ErrorMessage: "bulk insert failed",
	})
	if err != nil {
		t.Fatal(err)
	}

	logs, err := repo.GetRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 logs, got %d", len(logs))
	}

	var success, failed *ImportLog
	for i := range logs {
		switch logs[i].Status {
		case ImportStatusSuccess:
			success = &logs[i]
		case ImportStatusError:
			failed = &logs[i]
		}
	}
	if success == nil || failed == nil {
		t.Fatalf("Expected one success and one error log, got %v", logs)
	}
	if success.JobsImported != 12 || success.JobsSkipped != 3 {
		t.Errorf("Expected counts 12/3, got %d/%d", success.JobsImported, success.JobsSkipped)
	}
	if success.ChunksProcessed != 4 {
		t.Errorf("Expected 4 chunks processed, got %d", success.ChunksProcessed)
	}
	if failed.ErrorMessage != "bulk insert failed" {
		t.Errorf("Expected error message preserved, got '%s'", failed.ErrorMessage)
	}
}
