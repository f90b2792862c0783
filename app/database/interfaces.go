package database

import (
	"time"

	"github.com/click2job/jobfeed/app/feed"
)

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeedByID(feedID string) (*Feed, error)
	GetActiveFeeds() ([]Feed, error)
	GetAllFeeds() ([]Feed, error)

	UpsertFeed(feedName, feedURL, recordTag, fieldMapping, notes string) (string, error)
	SetFeedStatus(feedID string, status string) error
	MarkDownloaded(feedID string, at time.Time) error
	RecordImport(feedID string, imported int, at time.Time) error
}

type ChunkRepository interface {
	CreateChunk(feedID, feedName string, chunkIndex int, payload string) (string, error)
	DeletePending(feedID string) (int, error)

	GetPending(limit int) ([]Chunk, error)
	MarkProcessing(chunkIDs []string) error
	FinishChunk(chunkID string, status string, jobsImported int, errorMessage string) error

	CountByStatus(status string) (int, error)
	GetRecentErrors(limit int) ([]Chunk, error)
}

type JobRepository interface {
	GetExternalIDs(source string) (map[string]bool, error)
	BulkCreate(records []feed.JobRecord) (int, error)
	GetJobCount() (int, error)
}

type ImportLogRepository interface {
	CreateLog(log ImportLog) error
	GetRecent(limit int) ([]ImportLog, error)
}
