package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/fetch"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/samber/lo"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type BatchFetcher interface {
	FetchAll(ctx context.Context, urls []string) []fetch.Result
}

type SnapshotMerger interface {
	CreateFromSnapshot(ctx context.Context, snap *feed.Snapshot) (*merger.Outcome, error)
	Refresh(ctx context.Context, current *database.Feed, snap *feed.Snapshot) (*merger.Outcome, error)
	Replace(ctx context.Context, current *database.Feed, snap *feed.Snapshot) (*merger.Outcome, error)
}

var _ SnapshotMerger = (*merger.Merger)(nil)
var _ BatchFetcher = (*fetch.Orchestrator)(nil)

// BatchItem is the per-URL outcome of Ingest.
type BatchItem struct {
	URL        string
	Status     string
	Message    string
	Kind       feed.ErrorKind // empty on success
	Feed       *database.Feed
	NewEntries int
}

type BatchResult struct {
	Items []BatchItem
}

func (b *BatchResult) AllSucceeded() bool {
	return lo.EveryBy(b.Items, func(item BatchItem) bool { return item.Status == StatusSuccess })
}

func (b *BatchResult) FailedCount() int {
	return lo.CountBy(b.Items, func(item BatchItem) bool { return item.Status != StatusSuccess })
}

// SyncReport aggregates one SyncDueFeeds run.
type SyncReport struct {
	Due        int
	Refreshed  int
	Failed     int
	NewEntries int
}

// FeedDetail is a stored feed with its entry count.
type FeedDetail struct {
	Feed       *database.Feed
	EntryCount int
}

type Service struct {
	feeds           database.FeedRepository
	entries         database.EntryRepository
	fetcher         fetch.Fetcher
	orchestrator    BatchFetcher
	merger          SnapshotMerger
	refreshInterval time.Duration
	batchTimeout    time.Duration
	now             func() time.Time
}

type Option func(*Service)

// WithBatchTimeout bounds the fetch phase of Ingest. URLs still pending when
// it expires fail with a timeout error and the rest of the batch is merged.
func WithBatchTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.batchTimeout = timeout
		}
	}
}

func New(repos *database.Repositories, fetcher fetch.Fetcher, orchestrator BatchFetcher, m SnapshotMerger, refreshInterval time.Duration, opts ...Option) *Service {
	s := &Service{
		feeds:           repos.Feeds,
		entries:         repos.Entries,
		fetcher:         fetcher,
		orchestrator:    orchestrator,
		merger:          m,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest fetches all urls concurrently, then merges the successful snapshots
// one by one in input order. Unknown feeds are created, known ones refreshed.
// A failure is reported on its own item and never affects the others.
func (s *Service) Ingest(ctx context.Context, urls []string) (*BatchResult, error) {
	urls = lo.Map(urls, func(u string, _ int) string { return strings.TrimSpace(u) })
	if len(urls) == 0 {
		return nil, feed.NewInvalidFeedError(fmt.Errorf("at least one feed URL is required"))
	}

	valid := lo.Filter(urls, func(u string, _ int) bool { return u != "" })
	fetched := s.fetchBatch(ctx, valid)
	byIndex := make(map[int]fetch.Result, len(valid))
	next := 0
	for i, u := range urls {
		if u != "" {
			byIndex[i] = fetched[next]
			next++
		}
	}

	result := &BatchResult{Items: make([]BatchItem, len(urls))}
	for i, u := range urls {
		res, ok := byIndex[i]
		if !ok {
			result.Items[i] = errorItem(u, feed.NewInvalidFeedError(fmt.Errorf("URL is required")))
			continue
		}
		if !res.OK() {
			result.Items[i] = errorItem(u, res.Err)
			continue
		}
		result.Items[i] = s.mergeSnapshot(ctx, res.Snapshot)
	}

	slog.Info("Batch ingestion completed",
		"total", len(result.Items),
		"failed", result.FailedCount())

	return result, nil
}

func (s *Service) fetchBatch(ctx context.Context, urls []string) []fetch.Result {
	if s.batchTimeout == 0 {
		return s.orchestrator.FetchAll(ctx, urls)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()
	return s.orchestrator.FetchAll(fetchCtx, urls)
}

func (s *Service) mergeSnapshot(ctx context.Context, snap *feed.Snapshot) BatchItem {
	existing, err := s.feeds.GetFeedByURL(ctx, snap.SourceURL)
	if err != nil {
		return errorItem(snap.SourceURL, feed.NewStorageError("lookup feed", err))
	}

	if existing != nil {
		outcome, err := s.merger.Refresh(ctx, existing, snap)
		if err != nil {
			return errorItem(snap.SourceURL, err)
		}
		return successItem(snap.SourceURL, outcome, RefreshMessage(outcome))
	}

	outcome, err := s.merger.CreateFromSnapshot(ctx, snap)
	if err != nil {
		return errorItem(snap.SourceURL, err)
	}
	return successItem(snap.SourceURL, outcome,
		fmt.Sprintf("Feed added successfully. %d entries imported.", outcome.NewEntries))
}

// RefreshFeed fetches the feed and merges new entries additively. A failed
// fetch returns its typed error and writes nothing.
func (s *Service) RefreshFeed(ctx context.Context, id int64) (*merger.Outcome, error) {
	current, snap, err := s.fetchStored(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.merger.Refresh(ctx, current, snap)
}

// ReplaceFeed fetches the feed and replaces all of its entries.
func (s *Service) ReplaceFeed(ctx context.Context, id int64) (*merger.Outcome, error) {
	current, snap, err := s.fetchStored(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.merger.Replace(ctx, current, snap)
}

func (s *Service) fetchStored(ctx context.Context, id int64) (*database.Feed, *feed.Snapshot, error) {
	current, err := s.feeds.GetFeed(ctx, id)
	if err != nil {
		return nil, nil, feed.NewStorageError("load feed", err)
	}
	if current == nil {
		return nil, nil, feed.NewNotFoundError("Feed", id)
	}

	res := s.fetcher.Fetch(ctx, current.URL)
	if !res.OK() {
		slog.Warn("Feed fetch failed", "feed_id", id, "url", current.URL, "kind", res.Err.Kind, "error", res.Err)
		return nil, nil, res.Err
	}
	return current, res.Snapshot, nil
}

// SyncDueFeeds refreshes every feed whose last sync is older than the
// refresh interval.
func (s *Service) SyncDueFeeds(ctx context.Context) (*SyncReport, error) {
	cutoff := s.now().UTC().Add(-s.refreshInterval)
	due, err := s.feeds.ListFeedsSyncedBefore(ctx, cutoff)
	if err != nil {
		return nil, feed.NewStorageError("list due feeds", err)
	}

	report := &SyncReport{Due: len(due)}
	if len(due) == 0 {
		slog.Debug("No feeds due for sync")
		return report, nil
	}

	results := s.orchestrator.FetchAll(ctx, lo.Map(due, func(f database.Feed, _ int) string { return f.URL }))
	for i, res := range results {
		if !res.OK() {
			report.Failed++
			slog.Warn("Feed sync fetch failed", "feed_id", due[i].ID, "url", due[i].URL, "kind", res.Err.Kind)
			continue
		}
		outcome, err := s.merger.Refresh(ctx, &due[i], res.Snapshot)
		if err != nil {
			report.Failed++
			slog.Warn("Feed sync merge failed", "feed_id", due[i].ID, "error", err)
			continue
		}
		report.Refreshed++
		report.NewEntries += outcome.NewEntries
	}

	slog.Info("Feed sync completed",
		"due", report.Due,
		"refreshed", report.Refreshed,
		"failed", report.Failed,
		"new", report.NewEntries)

	return report, nil
}

// SeedSubscriptions ingests the enabled subscriptions.
func (s *Service) SeedSubscriptions(ctx context.Context, subs []feed.Subscription) (*BatchResult, error) {
	enabled := lo.Filter(subs, func(sub feed.Subscription, _ int) bool { return sub.IsEnabled() })
	if len(enabled) == 0 {
		return &BatchResult{}, nil
	}
	return s.Ingest(ctx, lo.Map(enabled, func(sub feed.Subscription, _ int) string { return sub.URL }))
}

func (s *Service) ListFeeds(ctx context.Context) ([]database.Feed, error) {
	feeds, err := s.feeds.ListFeeds(ctx)
	if err != nil {
		return nil, feed.NewStorageError("list feeds", err)
	}
	return feeds, nil
}

func (s *Service) GetFeed(ctx context.Context, id int64) (*FeedDetail, error) {
	f, err := s.feeds.GetFeed(ctx, id)
	if err != nil {
		return nil, feed.NewStorageError("load feed", err)
	}
	if f == nil {
		return nil, feed.NewNotFoundError("Feed", id)
	}

	count, err := s.entries.CountEntries(ctx, id)
	if err != nil {
		return nil, feed.NewStorageError("count entries", err)
	}
	return &FeedDetail{Feed: f, EntryCount: count}, nil
}

// DeleteFeed removes the feed and, by cascade, all of its entries.
func (s *Service) DeleteFeed(ctx context.Context, id int64) error {
	deleted, err := s.feeds.DeleteFeed(ctx, id)
	if err != nil {
		return feed.NewStorageError("delete feed", err)
	}
	if !deleted {
		return feed.NewNotFoundError("Feed", id)
	}
	slog.Info("Feed deleted", "feed_id", id)
	return nil
}

func (s *Service) MarkEntryRead(ctx context.Context, id int64, read bool) (*database.Entry, error) {
	updated, err := s.entries.SetEntryRead(ctx, id, read)
	if err != nil {
		return nil, feed.NewStorageError("mark entry", err)
	}
	if !updated {
		return nil, feed.NewNotFoundError("Entry", id)
	}

	entry, err := s.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, feed.NewStorageError("load entry", err)
	}
	return entry, nil
}

// Stats summarizes storage for the status endpoint.
func (s *Service) Stats(ctx context.Context) (feeds int, entries int, err error) {
	feeds, err = s.feeds.GetFeedCount(ctx)
	if err != nil {
		return 0, 0, feed.NewStorageError("count feeds", err)
	}
	entries, err = s.entries.CountFilteredEntries(ctx, nil)
	if err != nil {
		return 0, 0, feed.NewStorageError("count entries", err)
	}
	return feeds, entries, nil
}

func RefreshMessage(outcome *merger.Outcome) string {
	return fmt.Sprintf("Feed refreshed successfully. %d new entries added.", outcome.NewEntries)
}

func ReplaceMessage(outcome *merger.Outcome) string {
	return fmt.Sprintf("Feed updated successfully. %d entries imported.", outcome.NewEntries)
}

func successItem(url string, outcome *merger.Outcome, message string) BatchItem {
	return BatchItem{
		URL:        url,
		Status:     StatusSuccess,
		Message:    message,
		Feed:       outcome.Feed,
		NewEntries: outcome.NewEntries,
	}
}

func errorItem(url string, err error) BatchItem {
	return BatchItem{
		URL:     url,
		Status:  StatusError,
		Message: err.Error(),
		Kind:    feed.KindOf(err),
	}
}
