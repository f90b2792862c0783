package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/click2job/jobfeed/app/database"
	"github.com/click2job/jobfeed/app/feed"
)

// ProcessResult reports the outcome of one chunk processing run.
type ProcessResult struct {
	Processed       int      `json:"processed"`
	TotalImported   int      `json:"total_imported"`
	TotalSkipped    int      `json:"total_skipped"`
	RemainingChunks int      `json:"remaining_chunks"`
	FeedsProcessed  []string `json:"feeds_processed"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// ProcessChunksTask drains a batch of pending chunks: mapping rules, record
// normalization, dedup against already stored offers, then one bulk insert
// per feed. Chunks of the same feed share one run of dedup state, so a job
// appearing in two chunks is stored once.
type ProcessChunksTask struct {
	Task
	feedRepo   database.FeedRepository
	chunkRepo  database.ChunkRepository
	jobRepo    database.JobRepository
	logRepo    database.ImportLogRepository
	mapper     *feed.Mapper
	normalizer *feed.Normalizer
	batchSize  int
}

func NewProcessChunksTask(feedRepo database.FeedRepository, chunkRepo database.ChunkRepository,
	jobRepo database.JobRepository, logRepo database.ImportLogRepository, batchSize int) *ProcessChunksTask {
	return &ProcessChunksTask{
		Task:       NewTask(TaskTypeProcessChunks, ""),
		feedRepo:   feedRepo,
		chunkRepo:  chunkRepo,
		jobRepo:    jobRepo,
		logRepo:    logRepo,
		mapper:     feed.NewMapper(),
		normalizer: feed.NewNormalizer(),
		batchSize:  batchSize,
	}
}

func (t *ProcessChunksTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.Run(ctx)
	if err != nil {
		slog.Error("Task failed", "type", "ProcessChunks", "error", err)
		return err
	}

	if result.Processed > 0 {
		slog.Info("Task completed",
			"type", "ProcessChunks",
			"duration", t.GetDuration(),
			"chunks", result.Processed,
			"imported", result.TotalImported,
			"skipped", result.TotalSkipped,
			"remaining", result.RemainingChunks)
	}

	return nil
}

// Run claims up to batchSize pending chunks and processes them grouped by
// feed. Feeds are handled sequentially; the job store has one writer.
func (t *ProcessChunksTask) Run(ctx context.Context) (*ProcessResult, error) {
	started := time.Now()
	result := &ProcessResult{FeedsProcessed: []string{}}

	chunks, err := t.chunkRepo.GetPending(t.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending chunks: %w", err)
	}
	if len(chunks) == 0 {
		return result, nil
	}

	chunkIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
	}
	if err := t.chunkRepo.MarkProcessing(chunkIDs); err != nil {
		return nil, fmt.Errorf("failed to claim chunks: %w", err)
	}

	// Group by feed, preserving first-seen order.
	groups := make(map[string][]database.Chunk)
	var feedOrder []string
	for _, chunk := range chunks {
		if _, ok := groups[chunk.FeedID]; !ok {
			feedOrder = append(feedOrder, chunk.FeedID)
		}
		groups[chunk.FeedID] = append(groups[chunk.FeedID], chunk)
	}

	for _, feedID := range feedOrder {
		feedStarted := time.Now()
		summary := t.processFeedChunks(ctx, feedID, groups[feedID])

		result.TotalImported += summary.imported
		result.TotalSkipped += summary.skipped
		result.FeedsProcessed = append(result.FeedsProcessed, summary.feedName)

		if summary.imported > 0 || summary.hasError {
			log := database.ImportLog{
				FeedID:          feedID,
				FeedName:        summary.feedName,
				Status:          summary.status(),
				ChunksProcessed: len(groups[feedID]),
				JobsImported:    summary.imported,
				JobsSkipped:     summary.skipped,
				ErrorMessage:    summary.errorMessage,
				DurationSeconds: time.Since(feedStarted).Seconds(),
			}
			if err := t.logRepo.CreateLog(log); err != nil {
				slog.Error("Failed to create import log", "feed", summary.feedName, "error", err)
			}
		}
	}

	result.Processed = len(chunks)
	result.DurationSeconds = time.Since(started).Seconds()

	remaining, err := t.chunkRepo.CountByStatus(database.ChunkStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining chunks: %w", err)
	}
	result.RemainingChunks = remaining

	return result, nil
}

type feedRunSummary struct {
	feedName     string
	imported     int
	skipped      int
	hasError     bool
	errorMessage string
}

func (s *feedRunSummary) status() string {
	switch {
	case s.hasError && s.imported == 0:
		return database.ImportStatusError
	case s.hasError:
		return database.ImportStatusPartial
	default:
		return database.ImportStatusSuccess
	}
}

type chunkOutcome struct {
	chunkID  string
	imported int
}

// processFeedChunks turns the staged chunks of one feed into stored job
// offers. Chunk statuses are finalized only after the bulk insert, so a
// failed insert leaves every chunk marked error instead of silently done.
func (t *ProcessChunksTask) processFeedChunks(ctx context.Context, feedID string, chunks []database.Chunk) feedRunSummary {
	summary := feedRunSummary{feedName: chunks[0].FeedName}

	dbFeed, err := t.feedRepo.GetFeedByID(feedID)
	if err != nil || dbFeed == nil {
		message := "feed not found"
		if err != nil {
			message = err.Error()
		}
		t.failChunks(chunks, message)
		summary.hasError = true
		summary.errorMessage = message
		return summary
	}
	summary.feedName = dbFeed.Name

	var rules []feed.MappingRule
	if dbFeed.FieldMapping != "" {
		if err := json.Unmarshal([]byte(dbFeed.FieldMapping), &rules); err != nil {
			slog.Warn("Invalid field mapping, processing without rules", "feed", dbFeed.Name, "error", err)
			rules = nil
		}
	}

	existingIDs, err := t.jobRepo.GetExternalIDs(dbFeed.Name)
	if err != nil {
		t.failChunks(chunks, err.Error())
		summary.hasError = true
		summary.errorMessage = err.Error()
		return summary
	}

	var records []feed.JobRecord
	var outcomes []chunkOutcome

	for _, chunk := range chunks {
		var rawRecords []feed.RawRecord
		if err := json.Unmarshal([]byte(chunk.Payload), &rawRecords); err != nil {
			if err := t.chunkRepo.FinishChunk(chunk.ID, database.ChunkStatusError, 0, "invalid chunk payload: "+err.Error()); err != nil {
				slog.Error("Failed to update chunk status", "chunk", chunk.ID, "error", err)
			}
			summary.hasError = true
			summary.errorMessage = "invalid chunk payload"
			continue
		}

		chunkImported := 0
		for _, raw := range rawRecords {
			mapped := t.mapper.Run(raw, rules)
			record := t.normalizer.Run(mapped, dbFeed.Name, dbFeed.ID)
			if record == nil {
				summary.skipped++
				continue
			}

			if record.ExternalID != "" {
				if existingIDs[record.ExternalID] {
					summary.skipped++
					continue
				}
				existingIDs[record.ExternalID] = true
			}

			records = append(records, *record)
			chunkImported++
		}

		outcomes = append(outcomes, chunkOutcome{chunkID: chunk.ID, imported: chunkImported})
	}

	imported, err := t.jobRepo.BulkCreate(records)
	if err != nil {
		for _, outcome := range outcomes {
			if err := t.chunkRepo.FinishChunk(outcome.chunkID, database.ChunkStatusError, 0, "bulk insert failed: "+err.Error()); err != nil {
				slog.Error("Failed to update chunk status", "chunk", outcome.chunkID, "error", err)
			}
		}
		summary.hasError = true
		summary.errorMessage = err.Error()
		return summary
	}

	for _, outcome := range outcomes {
		if err := t.chunkRepo.FinishChunk(outcome.chunkID, database.ChunkStatusDone, outcome.imported, ""); err != nil {
			slog.Error("Failed to update chunk status", "chunk", outcome.chunkID, "error", err)
		}
	}

	summary.imported = imported
	if imported > 0 {
		if err := t.feedRepo.RecordImport(feedID, imported, time.Now().UTC()); err != nil {
			slog.Error("Failed to record import on feed", "feed", dbFeed.Name, "error", err)
		}
	}

	return summary
}

func (t *ProcessChunksTask) failChunks(chunks []database.Chunk, message string) {
	for _, chunk := range chunks {
		if err := t.chunkRepo.FinishChunk(chunk.ID, database.ChunkStatusError, 0, message); err != nil {
			slog.Error("Failed to update chunk status", "chunk", chunk.ID, "error", err)
		}
	}
}
