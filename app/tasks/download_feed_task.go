package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/click2job/jobfeed/app/database"
	"github.com/click2job/jobfeed/app/feed"
)

// DownloadResult reports the outcome of one feed download. Failures are
// reported in Error rather than as an execution error, so one bad feed never
// aborts a multi-feed download round.
type DownloadResult struct {
	Feed           string `json:"feed"`
	TotalJobsFound int    `json:"total_jobs_found"`
	ChunksCreated  int    `json:"chunks_created"`
	Skipped        bool   `json:"skipped,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DownloadFeedTask streams one feed, extracts its records and stages them as
// pending chunks. Previously staged pending chunks of the same feed are
// discarded first, so a re-download never double-stages records.
type DownloadFeedTask struct {
	Task
	DBFeed     database.Feed
	fetcher    *feed.Fetcher
	feedRepo   database.FeedRepository
	chunkRepo  database.ChunkRepository
	chunkSize  int
	maxRecords int
}

func NewDownloadFeedTask(dbFeed database.Feed, fetcher *feed.Fetcher,
	feedRepo database.FeedRepository, chunkRepo database.ChunkRepository,
	chunkSize, maxRecords int) *DownloadFeedTask {
	return &DownloadFeedTask{
		Task:       NewTask(TaskTypeDownloadFeed, dbFeed.Name),
		DBFeed:     dbFeed,
		fetcher:    fetcher,
		feedRepo:   feedRepo,
		chunkRepo:  chunkRepo,
		chunkSize:  chunkSize,
		maxRecords: maxRecords,
	}
}

func (t *DownloadFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.Run(ctx)
	if err != nil {
		slog.Error("Task failed", "type", "DownloadFeed", "feed", t.FeedName, "error", err)
		return err
	}

	slog.Info("Task completed",
		"type", "DownloadFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", result.TotalJobsFound,
		"chunks", result.ChunksCreated,
		"skipped", result.Skipped,
		"error", result.Error)

	return nil
}

// Run downloads and stages the feed. Per-feed failures land in the result;
// the returned error is reserved for infrastructure faults.
func (t *DownloadFeedTask) Run(ctx context.Context) (*DownloadResult, error) {
	result := &DownloadResult{Feed: t.DBFeed.Name}

	if _, err := t.chunkRepo.DeletePending(t.DBFeed.ID); err != nil {
		return nil, err
	}

	body, err := t.fetcher.Run(ctx, t.DBFeed.URL)
	if err != nil {
		var rateLimited *feed.RateLimitedError
		if errors.As(err, &rateLimited) {
			// Transient upstream throttling; the feed stays healthy and is
			// retried on the next scheduler round.
			slog.Warn("Feed download rate limited, skipping this run", "feed", t.DBFeed.Name, "status", rateLimited.StatusCode)
			result.Skipped = true
			return result, nil
		}
		t.failFeed(result, err.Error())
		return result, nil
	}
	defer body.Close()

	extractor := feed.NewExtractor(t.DBFeed.RecordTag)

	var batch []feed.RawRecord
	var persistErr error
	chunkIndex := 0

	flush := func() {
		if len(batch) == 0 || persistErr != nil {
			return
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			persistErr = fmt.Errorf("failed to serialize chunk payload: %w", err)
			return
		}
		if _, err := t.chunkRepo.CreateChunk(t.DBFeed.ID, t.DBFeed.Name, chunkIndex, string(payload)); err != nil {
			persistErr = err
			return
		}
		chunkIndex++
		result.ChunksCreated++
		batch = batch[:0]
	}

	err = extractor.Run(body.Reader, body.IsGzip, func(record feed.RawRecord) bool {
		batch = append(batch, record)
		result.TotalJobsFound++

		if len(batch) >= t.chunkSize {
			flush()
			if persistErr != nil {
				return false
			}
		}
		return result.TotalJobsFound < t.maxRecords
	})
	if err != nil {
		t.failFeed(result, err.Error())
		return result, nil
	}

	flush()
	if persistErr != nil {
		t.failFeed(result, persistErr.Error())
		return result, nil
	}

	if result.TotalJobsFound == 0 {
		t.failFeed(result, fmt.Sprintf("no records found in feed, check the configured record tag %q", t.DBFeed.RecordTag))
		return result, nil
	}

	if err := t.feedRepo.SetFeedStatus(t.DBFeed.ID, database.FeedStatusActive); err != nil {
		return nil, err
	}
	if err := t.feedRepo.MarkDownloaded(t.DBFeed.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return result, nil
}

func (t *DownloadFeedTask) failFeed(result *DownloadResult, message string) {
	result.Error = message
	if err := t.feedRepo.SetFeedStatus(t.DBFeed.ID, database.FeedStatusError); err != nil {
		slog.Error("Failed to set feed error status", "feed", t.DBFeed.Name, "error", err)
	}
}
