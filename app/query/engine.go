package query

import (
	"context"
	"time"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/metrics"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type Pagination struct {
	Total       int `json:"total"`
	PerPage     int `json:"perPage"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
}

type Page struct {
	Entries    []database.EntryWithFeed
	Pagination Pagination
}

type Engine struct {
	entries database.EntryRepository
}

func NewEngine(entries database.EntryRepository) *Engine {
	return &Engine{entries: entries}
}

// ListEntries returns one page of entries matching filters, newest first.
// page and perPage below 1 are clamped to 1. The total is counted separately
// over the same predicate, so an empty result yields total 0 and last page 0.
func (e *Engine) ListEntries(ctx context.Context, filters Filters, page, perPage int) (*Page, error) {
	start := time.Now()
	defer func() { metrics.ObserveQuery(time.Since(start)) }()

	page = max(1, page)
	perPage = max(1, perPage)

	predicates := filters.entryFilters()

	total, err := e.entries.CountFilteredEntries(ctx, predicates)
	if err != nil {
		return nil, feed.NewStorageError("count entries", err)
	}

	result := &Page{
		Entries: make([]database.EntryWithFeed, 0),
		Pagination: Pagination{
			Total:       total,
			PerPage:     perPage,
			CurrentPage: page,
			LastPage:    lastPage(total, perPage),
		},
	}

	// Past the last page the offset may not fit in an int.
	if page > result.Pagination.LastPage {
		return result, nil
	}

	entries, err := e.entries.FindEntries(ctx, predicates, perPage, (page-1)*perPage)
	if err != nil {
		return nil, feed.NewStorageError("list entries", err)
	}
	result.Entries = entries

	return result, nil
}

func lastPage(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total-1)/perPage + 1
}
