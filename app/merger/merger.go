package merger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/metrics"
)

// Outcome reports what one merge wrote.
type Outcome struct {
	Feed       *database.Feed
	NewEntries int
	Skipped    int // items whose URL was already stored
	Removed    int // entries deleted by Replace
}

// Merger reconciles snapshots with storage. Every operation runs in exactly
// one transaction, so feed metadata and entries are written together or not
// at all.
type Merger struct {
	db  database.TxRunner
	now func() time.Time
}

func New(db database.TxRunner) *Merger {
	return &Merger{
		db:  db,
		now: time.Now,
	}
}

// CreateFromSnapshot creates a feed from snap and inserts all of its items.
// It fails with a duplicate_feed error when the source URL is already known.
func (m *Merger) CreateFromSnapshot(ctx context.Context, snap *feed.Snapshot) (*Outcome, error) {
	outcome := &Outcome{}

	err := m.db.RunInTx(ctx, func(r *database.Repositories) error {
		existing, err := r.Feeds.GetFeedByURL(ctx, snap.SourceURL)
		if err != nil {
			return feed.NewStorageError("create", err)
		}
		if existing != nil {
			return feed.NewDuplicateFeedError(snap.SourceURL)
		}

		now := m.now().UTC()
		created := &database.Feed{
			Title:        snap.Title,
			URL:          snap.SourceURL,
			Description:  snap.Description,
			LastSyncedAt: now,
			CreatedAt:    now,
		}
		if err := r.Feeds.CreateFeed(ctx, created); err != nil {
			if database.IsUniqueViolation(err) {
				return feed.NewDuplicateFeedError(snap.SourceURL)
			}
			return feed.NewStorageError("create", err)
		}
		outcome.Feed = created

		return insertItems(ctx, r.Entries, created.ID, snap.Items, outcome)
	})
	if err != nil {
		return nil, m.fail("create", snap.SourceURL, err)
	}

	m.observe("create", outcome)
	return outcome, nil
}

// Refresh is additive: items whose URL exists anywhere in storage are skipped,
// the rest are inserted in snapshot order. Metadata and last sync time are
// updated even when nothing is new.
func (m *Merger) Refresh(ctx context.Context, current *database.Feed, snap *feed.Snapshot) (*Outcome, error) {
	outcome := &Outcome{}

	err := m.db.RunInTx(ctx, func(r *database.Repositories) error {
		updated, err := m.updateMetadata(ctx, r.Feeds, current.ID, snap)
		if err != nil {
			return err
		}
		outcome.Feed = updated

		return insertItems(ctx, r.Entries, updated.ID, snap.Items, outcome)
	})
	if err != nil {
		return nil, m.fail("refresh", current.URL, err)
	}

	m.observe("refresh", outcome)
	return outcome, nil
}

// Replace deletes every entry of the feed and inserts the snapshot items.
func (m *Merger) Replace(ctx context.Context, current *database.Feed, snap *feed.Snapshot) (*Outcome, error) {
	outcome := &Outcome{}

	err := m.db.RunInTx(ctx, func(r *database.Repositories) error {
		updated, err := m.updateMetadata(ctx, r.Feeds, current.ID, snap)
		if err != nil {
			return err
		}
		outcome.Feed = updated

		removed, err := r.Entries.DeleteEntriesByFeed(ctx, updated.ID)
		if err != nil {
			return feed.NewStorageError("replace", err)
		}
		outcome.Removed = removed

		return insertItems(ctx, r.Entries, updated.ID, snap.Items, outcome)
	})
	if err != nil {
		return nil, m.fail("replace", current.URL, err)
	}

	m.observe("replace", outcome)
	return outcome, nil
}

// updateMetadata reloads the feed inside the transaction and advances
// LastSyncedAt, which never moves backwards.
func (m *Merger) updateMetadata(ctx context.Context, feeds database.FeedRepository, id int64, snap *feed.Snapshot) (*database.Feed, error) {
	stored, err := feeds.GetFeed(ctx, id)
	if err != nil {
		return nil, feed.NewStorageError("load feed", err)
	}
	if stored == nil {
		return nil, feed.NewNotFoundError("feed", id)
	}

	syncedAt := m.now().UTC()
	if syncedAt.Before(stored.LastSyncedAt) {
		syncedAt = stored.LastSyncedAt
	}

	stored.Title = snap.Title
	stored.Description = snap.Description
	stored.LastSyncedAt = syncedAt

	if err := feeds.UpdateFeed(ctx, stored); err != nil {
		return nil, feed.NewStorageError("update feed", err)
	}

	return stored, nil
}

func insertItems(ctx context.Context, entries database.EntryRepository, feedID int64, items []feed.Item, outcome *Outcome) error {
	for _, item := range items {
		existing, err := entries.GetEntryByURL(ctx, item.URL)
		if err != nil {
			return feed.NewStorageError("lookup entry", err)
		}
		if existing != nil {
			outcome.Skipped++
			continue
		}

		inserted, err := entries.InsertEntry(ctx, toEntry(feedID, item))
		if err != nil {
			return feed.NewStorageError("insert entry", err)
		}
		if inserted {
			outcome.NewEntries++
		} else {
			outcome.Skipped++
		}
	}
	return nil
}

func toEntry(feedID int64, item feed.Item) *database.Entry {
	entry := &database.Entry{
		FeedID:      feedID,
		Title:       item.Title,
		URL:         item.URL,
		Description: item.Description,
		PublishedAt: item.PublishedAt,
	}
	if item.Enclosure != nil {
		entry.Enclosure = &database.Enclosure{
			URL:    item.Enclosure.URL,
			Type:   item.Enclosure.Type,
			Length: item.Enclosure.Length,
		}
	}
	return entry
}

func (m *Merger) fail(operation, url string, err error) error {
	var feedErr *feed.Error
	if !errors.As(err, &feedErr) {
		err = feed.NewStorageError(operation, err)
	}
	if feed.IsKind(err, feed.ErrorKindStorageFailure) {
		metrics.ObserveMergeFailure(operation)
		slog.Error("Merge failed", "operation", operation, "url", url, "error", err)
	}
	return err
}

func (m *Merger) observe(operation string, outcome *Outcome) {
	metrics.ObserveMerge(outcome.NewEntries, outcome.Skipped, outcome.Removed)
	slog.Debug("Merge completed",
		"operation", operation,
		"feed_id", outcome.Feed.ID,
		"new", outcome.NewEntries,
		"skipped", outcome.Skipped,
		"removed", outcome.Removed)
}
