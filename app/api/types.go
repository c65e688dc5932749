package api

import (
	"context"
	"time"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/lysyi3m/feedsync/app/query"
	"github.com/lysyi3m/feedsync/app/service"
	"github.com/lysyi3m/feedsync/app/tasks"
	"github.com/samber/lo"
)

type FeedService interface {
	Ingest(ctx context.Context, urls []string) (*service.BatchResult, error)
	RefreshFeed(ctx context.Context, id int64) (*merger.Outcome, error)
	ReplaceFeed(ctx context.Context, id int64) (*merger.Outcome, error)
	DeleteFeed(ctx context.Context, id int64) error
	ListFeeds(ctx context.Context) ([]database.Feed, error)
	GetFeed(ctx context.Context, id int64) (*service.FeedDetail, error)
	MarkEntryRead(ctx context.Context, id int64, read bool) (*database.Entry, error)
	Stats(ctx context.Context) (int, int, error)
	SyncDueFeeds(ctx context.Context) (*service.SyncReport, error)
}

type EntryLister interface {
	ListEntries(ctx context.Context, filters query.Filters, page, perPage int) (*query.Page, error)
}

var (
	_ FeedService = (*service.Service)(nil)
	_ EntryLister = (*query.Engine)(nil)
)

type Handler struct {
	feeds     FeedService
	entries   EntryLister
	scheduler tasks.TaskSchedulerInterface
}

type createFeedsRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
}

type markReadRequest struct {
	Read *bool `json:"read"`
}

type feedResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	LastSyncedAt string `json:"last_synced_at"`
	CreatedAt    string `json:"created_at"`
}

type feedDetailResponse struct {
	feedResponse
	EntryCount int `json:"entry_count"`
}

type entryResponse struct {
	ID              int64   `json:"id"`
	FeedID          int64   `json:"feed_id"`
	FeedTitle       string  `json:"feed_title,omitempty"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Description     string  `json:"description"`
	PublishedAt     string  `json:"published_at"`
	EnclosureURL    *string `json:"enclosure_url"`
	EnclosureType   *string `json:"enclosure_type"`
	EnclosureLength *int64  `json:"enclosure_length"`
	IsRead          bool    `json:"is_read"`
}

type batchItemResponse struct {
	URL     string        `json:"url"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Feed    *feedResponse `json:"feed,omitempty"`
}

type postsResponse struct {
	Entries    []entryResponse  `json:"entries"`
	Pagination query.Pagination `json:"pagination"`
}

func toFeedResponse(f *database.Feed) *feedResponse {
	if f == nil {
		return nil
	}
	return &feedResponse{
		ID:           f.ID,
		Title:        f.Title,
		URL:          f.URL,
		Description:  f.Description,
		LastSyncedAt: formatTimestamp(f.LastSyncedAt),
		CreatedAt:    formatTimestamp(f.CreatedAt),
	}
}

func toFeedResponses(feeds []database.Feed) []feedResponse {
	return lo.Map(feeds, func(f database.Feed, _ int) feedResponse { return *toFeedResponse(&f) })
}

func toEntryResponse(e *database.Entry, feedTitle string) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		FeedID:      e.FeedID,
		FeedTitle:   feedTitle,
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		PublishedAt: formatTimestamp(e.PublishedAt),
		IsRead:      e.IsRead,
	}
	if e.Enclosure != nil {
		resp.EnclosureURL = &e.Enclosure.URL
		resp.EnclosureType = &e.Enclosure.Type
		resp.EnclosureLength = &e.Enclosure.Length
	}
	return resp
}

func toEntryResponses(entries []database.EntryWithFeed) []entryResponse {
	return lo.Map(entries, func(e database.EntryWithFeed, _ int) entryResponse {
		return toEntryResponse(&e.Entry, e.FeedTitle)
	})
}

func toBatchResponses(items []service.BatchItem) []batchItemResponse {
	return lo.Map(items, func(item service.BatchItem, _ int) batchItemResponse {
		return batchItemResponse{
			URL:     item.URL,
			Status:  item.Status,
			Message: item.Message,
			Feed:    toFeedResponse(item.Feed),
		}
	})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
