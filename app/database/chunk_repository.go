package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type chunkRepository struct {
	db *DB
}

func NewChunkRepository(db *DB) ChunkRepository {
	return &chunkRepository{db: db}
}

const chunkColumns = `id, feed_id, feed_name, chunk_index, payload, status, jobs_imported, COALESCE(error_message, ''), created_at, updated_at`

func (r *chunkRepository) CreateChunk(feedID, feedName string, chunkIndex int, payload string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO feed_chunks (id, feed_id, feed_name, chunk_index, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, feedID, feedName, chunkIndex, payload, ChunkStatusPending, now)
	if err != nil {
		return "", fmt.Errorf("failed to create chunk: %w", err)
	}
	return id, nil
}

// DeletePending clears staged chunks of a feed before a fresh download, so
// re-downloading never double-stages the same records.
func (r *chunkRepository) DeletePending(feedID string) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM feed_chunks
		WHERE feed_id = $1 AND status = $2
	`, feedID, ChunkStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending chunks: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted chunks: %w", err)
	}
	return int(deleted), nil
}

// GetPending returns the oldest pending chunks in creation order, which
// keeps chunks of one feed adjacent in the batch.
func (r *chunkRepository) GetPending(limit int) ([]Chunk, error) {
	rows, err := r.db.Query(`
		SELECT `+chunkColumns+`
		FROM feed_chunks
		WHERE status = $1
		ORDER BY created_at, chunk_index
		LIMIT $2
	`, ChunkStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *chunkRepository) MarkProcessing(chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, 0, len(chunkIDs)+2)
	args = append(args, ChunkStatusProcessing, time.Now().UTC())
	for i, id := range chunkIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}

	_, err := r.db.Exec(`
		UPDATE feed_chunks
		SET status = $1, updated_at = $2
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark chunks processing: %w", err)
	}
	return nil
}

func (r *chunkRepository) FinishChunk(chunkID string, status string, jobsImported int, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE feed_chunks
		SET status = $2, jobs_imported = $3, error_message = $4, updated_at = $5
		WHERE id = $1
	`, chunkID, status, jobsImported, errorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to finish chunk: %w", err)
	}
	return nil
}

func (r *chunkRepository) CountByStatus(status string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feed_chunks WHERE status = $1", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (r *chunkRepository) GetRecentErrors(limit int) ([]Chunk, error) {
	rows, err := r.db.Query(`
		SELECT `+chunkColumns+`
		FROM feed_chunks
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, ChunkStatusError, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get errored chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		err := rows.Scan(
			&chunk.ID, &chunk.FeedID, &chunk.FeedName, &chunk.ChunkIndex, &chunk.Payload,
			&chunk.Status, &chunk.JobsImported, &chunk.ErrorMessage,
			&chunk.CreatedAt, &chunk.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return chunks, nil
}
