package api

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/click2job/jobfeed/app/cfg"
	"github.com/click2job/jobfeed/app/database"
	"github.com/click2job/jobfeed/app/feed"
	"github.com/click2job/jobfeed/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	chunkRepo database.ChunkRepository, jobRepo database.JobRepository,
	logRepo database.ImportLogRepository, fetcher *feed.Fetcher) *Handler {
	return &Handler{
		configCache: configCache,
		feedRepo:    feedRepo,
		chunkRepo:   chunkRepo,
		jobRepo:     jobRepo,
		logRepo:     logRepo,
		fetcher:     fetcher,
		inspector:   feed.NewInspector(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feeds, err := h.feedRepo.GetAllFeeds(); err == nil {
		health["feeds"] = len(feeds)
	}
	if jobCount, err := h.jobRepo.GetJobCount(); err == nil {
		health["jobs"] = jobCount
	}
	if pending, err := h.chunkRepo.CountByStatus(database.ChunkStatusPending); err == nil {
		health["pending_chunks"] = pending
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	dbFeeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(dbFeeds))
	for _, dbFeed := range dbFeeds {
		feedInfo := map[string]interface{}{
			"id":                  dbFeed.ID,
			"name":                dbFeed.Name,
			"url":                 dbFeed.URL,
			"status":              dbFeed.Status,
			"record_tag":          dbFeed.RecordTag,
			"notes":               dbFeed.Notes,
			"last_import_at":      dbFeed.LastImportAt,
			"last_download_at":    dbFeed.LastDownloadAt,
			"total_jobs_imported": dbFeed.TotalJobsImported,
		}

		if feedConfig, err := h.configCache.GetConfig(dbFeed.Name); err == nil {
			feedInfo["enabled"] = feedConfig.Settings.Enabled
			feedInfo["refresh_interval"] = (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String()
			feedInfo["mapping_rules"] = len(feedConfig.FieldMapping)
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

type downloadRequest struct {
	FeedID string `json:"feed_id"`
}

// PostDownloadFeeds downloads and stages one feed when feed_id is given, or
// every active feed otherwise. A targeted download works regardless of the
// feed's status, so an errored or paused feed can be retried by hand.
func (h *Handler) PostDownloadFeeds(c *gin.Context) {
	var req downloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	var dbFeeds []database.Feed
	if req.FeedID != "" {
		dbFeed, err := h.feedRepo.GetFeedByID(req.FeedID)
		if err != nil {
			slog.Error("Database error", "operation", "get_feed", "feed_id", req.FeedID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if dbFeed == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		dbFeeds = []database.Feed{*dbFeed}
	} else {
		var err error
		dbFeeds, err = h.feedRepo.GetActiveFeeds()
		if err != nil {
			slog.Error("Database error", "operation", "get_active_feeds", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	appCfg := cfg.Get()
	results := make([]*tasks.DownloadResult, 0, len(dbFeeds))
	for _, dbFeed := range dbFeeds {
		task := tasks.NewDownloadFeedTask(dbFeed, h.fetcher, h.feedRepo, h.chunkRepo, appCfg.ChunkSize, appCfg.MaxRecordsPerRun)
		result, err := task.Run(c.Request.Context())
		if err != nil {
			slog.Error("Feed download failed", "feed", dbFeed.Name, "error", err)
			results = append(results, &tasks.DownloadResult{Feed: dbFeed.Name, Error: err.Error()})
			continue
		}
		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

func (h *Handler) PostProcessChunks(c *gin.Context) {
	appCfg := cfg.Get()

	task := tasks.NewProcessChunksTask(h.feedRepo, h.chunkRepo, h.jobRepo, h.logRepo, appCfg.ProcessBatch)
	result, err := task.Run(c.Request.Context())
	if err != nil {
		slog.Error("Chunk processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chunk processing failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFeedFields samples a live feed and reports the fields it publishes,
// for authoring mapping rules.
func (h *Handler) GetFeedFields(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	dbFeed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if dbFeed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	body, err := h.fetcher.Run(c.Request.Context(), dbFeed.URL)
	if err != nil {
		slog.Error("Feed inspection fetch failed", "feed", name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch feed", "details": err.Error()})
		return
	}
	defer body.Close()

	report, err := h.inspector.Run(body, dbFeed.RecordTag)
	if err != nil {
		slog.Error("Feed inspection failed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to inspect feed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":        name,
		"record_tag":  dbFeed.RecordTag,
		"field_names": report.FieldNames,
		"samples":     report.Samples,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	dbFeeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_all_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	summary := map[string]int{
		"total_feeds":         len(dbFeeds),
		"active_feeds":        0,
		"paused_feeds":        0,
		"error_feeds":         0,
		"total_jobs_imported": 0,
	}
	for _, dbFeed := range dbFeeds {
		switch dbFeed.Status {
		case database.FeedStatusActive:
			summary["active_feeds"]++
		case database.FeedStatusPaused:
			summary["paused_feeds"]++
		case database.FeedStatusError:
			summary["error_feeds"]++
		}
		summary["total_jobs_imported"] += dbFeed.TotalJobsImported
	}

	stats := gin.H{"summary": summary}

	topFeeds := make([]database.Feed, len(dbFeeds))
	copy(topFeeds, dbFeeds)
	sort.Slice(topFeeds, func(i, j int) bool {
		return topFeeds[i].TotalJobsImported > topFeeds[j].TotalJobsImported
	})
	if len(topFeeds) > 5 {
		topFeeds = topFeeds[:5]
	}
	topInfos := make([]map[string]interface{}, 0, len(topFeeds))
	for _, dbFeed := range topFeeds {
		topInfos = append(topInfos, map[string]interface{}{
			"feed":                dbFeed.Name,
			"status":              dbFeed.Status,
			"total_jobs_imported": dbFeed.TotalJobsImported,
			"last_import_at":      dbFeed.LastImportAt,
		})
	}
	stats["top_feeds"] = topInfos

	if jobCount, err := h.jobRepo.GetJobCount(); err == nil {
		stats["jobs_stored"] = jobCount
	}
	if pending, err := h.chunkRepo.CountByStatus(database.ChunkStatusPending); err == nil {
		stats["pending_chunks"] = pending
	}

	if recentErrors, err := h.chunkRepo.GetRecentErrors(10); err == nil {
		errorInfos := make([]map[string]interface{}, 0, len(recentErrors))
		for _, chunk := range recentErrors {
			errorInfos = append(errorInfos, map[string]interface{}{
				"feed":        chunk.FeedName,
				"chunk_index": chunk.ChunkIndex,
				"error":       chunk.ErrorMessage,
				"updated_at":  chunk.UpdatedAt,
			})
		}
		stats["recent_errors"] = errorInfos
	}

	if logs, err := h.logRepo.GetRecent(20); err == nil {
		imports := make([]map[string]interface{}, 0, len(logs))
		trend := map[string]int{}
		for _, log := range logs {
			imports = append(imports, map[string]interface{}{
				"feed":             log.FeedName,
				"status":           log.Status,
				"chunks_processed": log.ChunksProcessed,
				"jobs_imported":    log.JobsImported,
				"jobs_skipped":     log.JobsSkipped,
				"error":            log.ErrorMessage,
				"duration_seconds": log.DurationSeconds,
				"created_at":       log.CreatedAt,
			})
			trend[log.CreatedAt.Format("2006-01-02")] += log.JobsImported
		}
		stats["recent_imports"] = imports
		stats["daily_imports"] = trend
	}

	c.JSON(http.StatusOK, stats)
}
