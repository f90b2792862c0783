package database

import (
	"time"
)

// Feed status values. A feed in error state stays visible in listings and
// can still be downloaded manually; a paused feed is skipped by the
// scheduler but not by manual downloads.
const (
	FeedStatusActive = "active"
	FeedStatusPaused = "paused"
	FeedStatusError  = "error"
)

// Chunk status lifecycle: pending -> processing -> done | error.
const (
	ChunkStatusPending    = "pending"
	ChunkStatusProcessing = "processing"
	ChunkStatusDone       = "done"
	ChunkStatusError      = "error"
)

const (
	ImportStatusSuccess = "success"
	ImportStatusPartial = "partial"
	ImportStatusError   = "error"
)

// Feed represents a feed record in the database
type Feed struct {
	ID                string // Database UUID
	Name              string // Configuration feed identifier derived from filename
	URL               string
	Status            string
	RecordTag         string
	FieldMapping      string // JSON array of mapping rules, synced from configuration
	Notes             string
	LastImportAt      *time.Time
	LastDownloadAt    *time.Time
	TotalJobsImported int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Chunk is a staged batch of extracted records awaiting processing. Payload
// is the JSON array of raw records exactly as extracted.
type Chunk struct {
	ID           string
	FeedID       string
	FeedName     string
	ChunkIndex   int
	Payload      string
	Status       string
	JobsImported int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ImportLog records the outcome of one processing run for one feed.
type ImportLog struct {
	ID              string
	FeedID          string
	FeedName        string
	Status          string
	ChunksProcessed int
	JobsImported    int
	JobsSkipped     int
	ErrorMessage    string
	DurationSeconds float64
	CreatedAt       time.Time
}
