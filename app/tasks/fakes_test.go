package tasks

import (
	"fmt"
	"time"

	"github.com/click2job/jobfeed/app/database"
	"github.com/click2job/jobfeed/app/feed"
)

type fakeFeedRepo struct {
	feeds map[string]*database.Feed // keyed by ID
}

func newFakeFeedRepo(feeds ...database.Feed) *fakeFeedRepo {
	repo := &fakeFeedRepo{feeds: make(map[string]*database.Feed)}
	for i := range feeds {
		f := feeds[i]
		repo.feeds[f.ID] = &f
	}
	return repo
}

func (r *fakeFeedRepo) GetFeed(feedName string) (*database.Feed, error) {
	for _, f := range r.feeds {
		if f.Name == feedName {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFeedRepo) GetFeedByID(feedID string) (*database.Feed, error) {
	return r.feeds[feedID], nil
}

func (r *fakeFeedRepo) GetActiveFeeds() ([]database.Feed, error) {
	var out []database.Feed
	for _, f := range r.feeds {
		if f.Status == database.FeedStatusActive {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFeedRepo) GetAllFeeds() ([]database.Feed, error) {
	var out []database.Feed
	for _, f := range r.feeds {
		out = append(out, *f)
	}
	return out, nil
}

func (r *fakeFeedRepo) UpsertFeed(feedName, feedURL, recordTag, fieldMapping, notes string) (string, error) {
	for _, f := range r.feeds {
		if f.Name == feedName {
			f.URL = feedURL
			f.RecordTag = recordTag
			f.FieldMapping = fieldMapping
			f.Notes = notes
			return f.ID, nil
		}
	}
	id := fmt.Sprintf("feed-%d", len(r.feeds)+1)
	r.feeds[id] = &database.Feed{
		ID: id, Name: feedName, URL: feedURL, Status: database.FeedStatusActive,
		RecordTag: recordTag, FieldMapping: fieldMapping, Notes: notes,
	}
	return id, nil
}

func (r *fakeFeedRepo) SetFeedStatus(feedID string, status string) error {
	if f, ok := r.feeds[feedID]; ok {
		f.Status = status
	}
	return nil
}

func (r *fakeFeedRepo) MarkDownloaded(feedID string, at time.Time) error {
	if f, ok := r.feeds[feedID]; ok {
		f.LastDownloadAt = &at
	}
	return nil
}

func (r *fakeFeedRepo) RecordImport(feedID string, imported int, at time.Time) error {
	if f, ok := r.feeds[feedID]; ok {
		f.TotalJobsImported += imported
		f.LastImportAt = &at
		f.Status = database.FeedStatusActive
	}
	return nil
}

type fakeChunkRepo struct {
	chunks []database.Chunk
	nextID int
}

func (r *fakeChunkRepo) CreateChunk(feedID, feedName string, chunkIndex int, payload string) (string, error) {
	r.nextID++
	id := fmt.Sprintf("chunk-%d", r.nextID)
	r.chunks = append(r.chunks, database.Chunk{
		ID: id, FeedID: feedID, FeedName: feedName, ChunkIndex: chunkIndex,
		Payload: payload, Status: database.ChunkStatusPending,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	return id, nil
}

func (r *fakeChunkRepo) DeletePending(feedID string) (int, error) {
	var kept []database.Chunk
	deleted := 0
	for _, c := range r.chunks {
		if c.FeedID == feedID && c.Status == database.ChunkStatusPending {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	r.chunks = kept
	return deleted, nil
}

func (r *fakeChunkRepo) GetPending(limit int) ([]database.Chunk, error) {
	var out []database.Chunk
	for _, c := range r.chunks {
		if c.Status == database.ChunkStatusPending {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) MarkProcessing(chunkIDs []string) error {
	for _, id := range chunkIDs {
		for i := range r.chunks {
			if r.chunks[i].ID == id {
				r.chunks[i].Status = database.ChunkStatusProcessing
			}
		}
	}
	return nil
}

func (r *fakeChunkRepo) FinishChunk(chunkID string, status string, jobsImported int, errorMessage string) error {
	for i := range r.chunks {
		if r.chunks[i].ID == chunkID {
			r.chunks[i].Status = status
			r.chunks[i].JobsImported = jobsImported
			r.chunks[i].ErrorMessage = errorMessage
		}
	}
	return nil
}

func (r *fakeChunkRepo) CountByStatus(status string) (int, error) {
	count := 0
	for _, c := range r.chunks {
		if c.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeChunkRepo) GetRecentErrors(limit int) ([]database.Chunk, error) {
	var out []database.Chunk
	for _, c := range r.chunks {
		if c.Status == database.ChunkStatusError {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) byStatus(status string) []database.Chunk {
	var out []database.Chunk
	for _, c := range r.chunks {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

type fakeJobRepo struct {
	jobs      []feed.JobRecord
	bulkErr   error
	bulkCalls int
}

func (r *fakeJobRepo) GetExternalIDs(source string) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, j := range r.jobs {
		if j.Source == source && j.ExternalID != "" {
			ids[j.ExternalID] = true
		}
	}
	return ids, nil
}

func (r *fakeJobRepo) BulkCreate(records []feed.JobRecord) (int, error) {
	r.bulkCalls++
	if r.bulkErr != nil {
		return 0, r.bulkErr
	}
	r.jobs = append(r.jobs, records...)
	return len(records), nil
}

func (r *fakeJobRepo) GetJobCount() (int, error) {
	return len(r.jobs), nil
}

type fakeLogRepo struct {
	logs []database.ImportLog
}

func (r *fakeLogRepo) CreateLog(log database.ImportLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeLogRepo) GetRecent(limit int) ([]database.ImportLog, error) {
	if len(r.logs) > limit {
		return r.logs[:limit], nil
	}
	return r.logs, nil
}
