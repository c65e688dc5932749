package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feedsync/app/cfg"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/lysyi3m/feedsync/app/query"
	"github.com/lysyi3m/feedsync/app/service"
	"github.com/lysyi3m/feedsync/app/tasks"
	"github.com/samber/lo"
)

func NewHandler(feeds FeedService, entries EntryLister, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feeds:     feeds,
		entries:   entries,
		scheduler: scheduler,
	}
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.ListFeeds(c.Request.Context())
	if err != nil {
		h.writeError(c, "list_feeds", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": toFeedResponses(feeds),
		"total": len(feeds),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.feeds.GetFeed(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_feed", err)
		return
	}

	c.JSON(http.StatusOK, feedDetailResponse{
		feedResponse: *toFeedResponse(detail.Feed),
		EntryCount:   detail.EntryCount,
	})
}

// CreateFeeds ingests {"urls": [...]} or a single {"url": "..."}. The
// response is 201 only when every URL succeeded.
func (h *Handler) CreateFeeds(c *gin.Context) {
	var req createFeedsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	urls := req.URLs
	if req.URL != "" {
		urls = append([]string{req.URL}, urls...)
	}
	if len(lo.Compact(lo.Map(urls, func(u string, _ int) string { return strings.TrimSpace(u) }))) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	result, err := h.feeds.Ingest(c.Request.Context(), urls)
	if err != nil {
		h.writeError(c, "create_feeds", err)
		return
	}

	status := http.StatusCreated
	if !result.AllSucceeded() {
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"results": toBatchResponses(result.Items),
		"status":  status,
	})
}

// RefreshFeed merges new entries synchronously, or with ?async=true queues a
// RefreshFeedTask that the scheduler retries on transient failures.
func (h *Handler) RefreshFeed(c *gin.Context) {
	if raw := c.Query("async"); raw != "" {
		async, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid async: %q", raw)})
			return
		}
		if async {
			h.enqueueRefresh(c)
			return
		}
	}
	h.syncFeed(c, "refresh_feed", h.feeds.RefreshFeed, service.RefreshMessage)
}

func (h *Handler) enqueueRefresh(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if _, err := h.feeds.GetFeed(c.Request.Context(), id); err != nil {
		if feed.IsKind(err, feed.ErrorKindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		h.writeError(c, "refresh_feed", err)
		return
	}

	task := tasks.NewRefreshFeedTask(id, h.feeds)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue RefreshFeedTask", "feed_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to schedule refresh: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"task_id": task.GetID(),
	})
}

// ReplaceFeed discards all entries of the feed and re-imports the current document.
func (h *Handler) ReplaceFeed(c *gin.Context) {
	h.syncFeed(c, "replace_feed", h.feeds.ReplaceFeed, service.ReplaceMessage)
}

func (h *Handler) syncFeed(c *gin.Context, operation string,
	run func(ctx context.Context, id int64) (*merger.Outcome, error),
	message func(*merger.Outcome) string) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	outcome, err := run(c.Request.Context(), id)
	if err != nil {
		if feed.IsKind(err, feed.ErrorKindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		slog.Warn("Feed sync failed", "operation", operation, "feed_id", id, "error", err)
		resp := gin.H{
			"status":  "error",
			"message": err.Error(),
		}
		if detail, lookupErr := h.feeds.GetFeed(c.Request.Context(), id); lookupErr == nil {
			resp["feed"] = toFeedResponse(detail.Feed)
		}
		c.JSON(statusFor(err), resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message(outcome),
		"feed":    toFeedResponse(outcome.Feed),
	})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.feeds.DeleteFeed(c.Request.Context(), id); err != nil {
		if feed.IsKind(err, feed.ErrorKindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		slog.Error("Database error", "operation", "delete_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete feed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Feed deleted successfully"})
}

// SyncFeeds queues a background sync of all due feeds.
func (h *Handler) SyncFeeds(c *gin.Context) {
	task := tasks.NewSyncFeedsTask(h.feeds)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue SyncFeedsTask", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to schedule sync: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"task_id": task.GetID(),
	})
}

func (h *Handler) ListPosts(c *gin.Context) {
	filters, page, perPage, err := parseListParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.entries.ListEntries(c.Request.Context(), filters, page, perPage)
	if err != nil {
		h.writeError(c, "list_entries", err)
		return
	}

	c.JSON(http.StatusOK, postsResponse{
		Entries:    toEntryResponses(result.Entries),
		Pagination: result.Pagination,
	})
}

func (h *Handler) MarkEntryRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Read == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field 'read' (boolean) is required"})
		return
	}

	entry, err := h.feeds.MarkEntryRead(c.Request.Context(), id, *req.Read)
	if err != nil {
		if feed.IsKind(err, feed.ErrorKindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		h.writeError(c, "mark_entry_read", err)
		return
	}

	c.JSON(http.StatusOK, toEntryResponse(entry, ""))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feeds, _, err := h.feeds.Stats(c.Request.Context()); err == nil {
		health["feeds"] = feeds
	} else {
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	feeds, entries, err := h.feeds.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, "stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds":     feeds,
		"entries":   entries,
		"scheduler": h.scheduler.GetStats(),
		"version":   cfg.GetVersion(),
	})
}

func (h *Handler) writeError(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Database error", "operation", operation, "error", err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  string(feed.KindOf(err)),
	})
}

func statusFor(err error) int {
	switch feed.KindOf(err) {
	case feed.ErrorKindInvalidFeed, feed.ErrorKindTimeout, feed.ErrorKindDuplicateFeed:
		return http.StatusBadRequest
	case feed.ErrorKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

func parseListParams(c *gin.Context) (query.Filters, int, int, error) {
	var filters query.Filters

	page, err := intParam(c, "page", 1)
	if err != nil {
		return filters, 0, 0, err
	}
	perPage, err := intParam(c, "perPage", query.DefaultPerPage)
	if err != nil {
		return filters, 0, 0, err
	}
	perPage = min(perPage, query.MaxPerPage)

	if raw := c.Query("feedId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filters, 0, 0, fmt.Errorf("invalid feedId: %q", raw)
		}
		filters.FeedID = &id
	}

	if raw := c.Query("startDate"); raw != "" {
		start, err := parseDate(raw, false)
		if err != nil {
			return filters, 0, 0, fmt.Errorf("invalid startDate: %q", raw)
		}
		filters.StartDate = &start
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := parseDate(raw, true)
		if err != nil {
			return filters, 0, 0, fmt.Errorf("invalid endDate: %q", raw)
		}
		filters.EndDate = &end
	}

	filters.Search = c.Query("search")

	if raw := c.Query("isRead"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, 0, 0, fmt.Errorf("invalid isRead: %q", raw)
		}
		filters.IsRead = &read
	}

	return filters, page, perPage, nil
}

func intParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	if n > 1_000_000 {
		return 0, errors.New(name + " is too large")
	}
	return n, nil
}

// parseDate accepts RFC 3339 or YYYY-MM-DD (UTC). A date-only end bound
// covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Second), nil
	}
	return day, nil
}
