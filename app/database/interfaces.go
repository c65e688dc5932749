package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EntryFilter contributes one predicate to an entry listing query.
type EntryFilter interface {
	ApplyFilter(sb *sqlbuilder.SelectBuilder)
}

type FeedRepository interface {
	GetFeed(ctx context.Context, id int64) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	ListFeedsSyncedBefore(ctx context.Context, cutoff time.Time) ([]Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	CreateFeed(ctx context.Context, feed *Feed) error
	UpdateFeed(ctx context.Context, feed *Feed) error
	DeleteFeed(ctx context.Context, id int64) (bool, error)
}

type EntryRepository interface {
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	GetEntryByURL(ctx context.Context, url string) (*Entry, error)
	CountEntries(ctx context.Context, feedID int64) (int, error)

	InsertEntry(ctx context.Context, entry *Entry) (bool, error)
	DeleteEntriesByFeed(ctx context.Context, feedID int64) (int, error)
	SetEntryRead(ctx context.Context, id int64, read bool) (bool, error)

	FindEntries(ctx context.Context, filters []EntryFilter, limit, offset int) ([]EntryWithFeed, error)
	CountFilteredEntries(ctx context.Context, filters []EntryFilter) (int, error)
}

// Repositories groups repositories bound to the same connection or transaction.
type Repositories struct {
	Feeds   FeedRepository
	Entries EntryRepository
}

// TxRunner runs fn inside a single transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(r *Repositories) error) error
}
