package api

import (
	"github.com/click2job/jobfeed/app/database"
	"github.com/click2job/jobfeed/app/feed"
)

type Handler struct {
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepository
	chunkRepo   database.ChunkRepository
	jobRepo     database.JobRepository
	logRepo     database.ImportLogRepository
	fetcher     *feed.Fetcher
	inspector   *feed.Inspector
}
