package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type importLogRepository struct {
	db *DB
}

func NewImportLogRepository(db *DB) ImportLogRepository {
	return &importLogRepository{db: db}
}

func (r *importLogRepository) CreateLog(log ImportLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO import_logs (id, feed_id, feed_name, status, chunks_processed, jobs_imported, jobs_skipped, error_message, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, log.ID, log.FeedID, log.FeedName, log.Status, log.ChunksProcessed, log.JobsImported, log.JobsSkipped,
		nullString(log.ErrorMessage), log.DurationSeconds, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	return nil
}

func (r *importLogRepository) GetRecent(limit int) ([]ImportLog, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, feed_name, status, chunks_processed, jobs_imported, jobs_skipped, COALESCE(error_message, ''), duration_seconds, created_at
		FROM import_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get import logs: %w", err)
	}
	defer rows.Close()

	var logs []ImportLog
	for rows.Next() {
		var log ImportLog
		err := rows.Scan(
			&log.ID, &log.FeedID, &log.FeedName, &log.Status,
			&log.ChunksProcessed, &log.JobsImported, &log.JobsSkipped,
			&log.ErrorMessage, &log.DurationSeconds, &log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import log row: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import log rows: %w", err)
	}
	return logs, nil
}
