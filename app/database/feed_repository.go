package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, name, url, status, record_tag, COALESCE(field_mapping, ''), COALESCE(notes, ''),
       last_import_at, last_download_at, total_jobs_imported, created_at, updated_at`

// UpsertFeed inserts or updates the configuration-owned columns of a feed.
// Runtime state (status, counters, timestamps) is never touched on update,
// so re-syncing configuration cannot resurrect an errored feed.
func (r *feedRepository) UpsertFeed(feedName, feedURL, recordTag, fieldMapping, notes string) (string, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, url, status, record_tag, field_mapping, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT(name) DO UPDATE SET
			url = excluded.url,
			record_tag = excluded.record_tag,
			field_mapping = excluded.field_mapping,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, id, feedName, feedURL, FeedStatusActive, recordTag, fieldMapping, notes, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	var dbID string
	err = r.db.QueryRow("SELECT id FROM feeds WHERE name = $1", feedName).Scan(&dbID)
	if err != nil {
		return "", fmt.Errorf("failed to read back feed id: %w", err)
	}
	return dbID, nil
}

func (r *feedRepository) GetFeed(feedName string) (*Feed, error) {
	return r.getFeedWhere("name = $1", feedName)
}

func (r *feedRepository) GetFeedByID(feedID string) (*Feed, error) {
	return r.getFeedWhere("id = $1", feedID)
}

func (r *feedRepository) getFeedWhere(where string, arg any) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE `+where, arg).Scan(
		&feed.ID, &feed.Name, &feed.URL, &feed.Status, &feed.RecordTag, &feed.FieldMapping, &feed.Notes,
		&feed.LastImportAt, &feed.LastDownloadAt, &feed.TotalJobsImported,
		&feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return &feed, nil
}

// GetActiveFeeds returns feeds eligible for scheduled downloads, excluding
// both paused and errored ones.
func (r *feedRepository) GetActiveFeeds() ([]Feed, error) {
	return r.getFeedsWhere("WHERE status = '" + FeedStatusActive + "'")
}

func (r *feedRepository) GetAllFeeds() ([]Feed, error) {
	return r.getFeedsWhere("")
}

func (r *feedRepository) getFeedsWhere(where string) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT ` + feedColumns + `
		FROM feeds
		` + where + `
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.Name, &feed.URL, &feed.Status, &feed.RecordTag, &feed.FieldMapping, &feed.Notes,
			&feed.LastImportAt, &feed.LastDownloadAt, &feed.TotalJobsImported,
			&feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) SetFeedStatus(feedID string, status string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, feedID, status, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to set feed status: %w", err)
	}
	return nil
}

func (r *feedRepository) MarkDownloaded(feedID string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_download_at = $2, updated_at = $3
		WHERE id = $1
	`, feedID, at.UTC(), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to mark feed downloaded: %w", err)
	}
	return nil
}

// RecordImport adds imported jobs to the running total and clears any error
// state accrued by previous runs.
func (r *feedRepository) RecordImport(feedID string, imported int, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET total_jobs_imported = total_jobs_imported + $2,
		    last_import_at = $3,
		    status = $4,
		    updated_at = $5
		WHERE id = $1
	`, feedID, imported, at.UTC(), FeedStatusActive, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}
