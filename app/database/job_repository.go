package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/click2job/jobfeed/app/feed"
)

type jobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) JobRepository {
	return &jobRepository{db: db}
}

// GetExternalIDs returns the set of external IDs already stored for a
// source. Loaded once per feed per processing run and used for in-memory
// dedup, so chunks of the same run also dedup against each other.
func (r *jobRepository) GetExternalIDs(source string) (map[string]bool, error) {
	rows, err := r.db.Query(`
		SELECT external_id
		FROM job_offers
		WHERE source = $1 AND external_id IS NOT NULL
	`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get external ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		ids[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating external ids: %w", err)
	}
	return ids, nil
}

// BulkCreate inserts all records in one transaction. All-or-nothing: a
// failed insert rolls back the whole batch so chunks can be retried intact.
func (r *jobRepository) BulkCreate(records []feed.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO job_offers (
			id, title, company, location, region, category, description, requirements,
			apply_url, external_id, source, contract_type, work_schedule,
			salary_min, salary_max, expiry_date, is_active, is_featured,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, record := range records {
		_, err := stmt.Exec(
			uuid.NewString(),
			record.Title,
			nullString(record.Company),
			nullString(record.Location),
			nullString(record.Region),
			nullString(record.Category),
			nullString(record.Description),
			nullString(record.Requirements),
			nullString(record.ApplyURL),
			nullString(record.ExternalID),
			record.Source,
			nullString(record.ContractType),
			nullString(record.WorkSchedule),
			nullInt(record.SalaryMin),
			nullInt(record.SalaryMax),
			nullString(record.ExpiryDate),
			record.IsActive,
			record.IsFeatured,
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert job offer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit job offers: %w", err)
	}
	return len(records), nil
}

func (r *jobRepository) GetJobCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM job_offers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get job count: %w", err)
	}
	return count, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
