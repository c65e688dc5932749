package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

var feedColumns = []string{"id", "title", "url", "description", "last_synced_at", "created_at"}

var _ FeedRepository = (*SQLiteFeedRepository)(nil)

type SQLiteFeedRepository struct {
	db DBTX
}

func NewFeedRepository(db DBTX) *SQLiteFeedRepository {
	return &SQLiteFeedRepository{db: db}
}

func (r *SQLiteFeedRepository) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").Where(sb.Equal("id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getOne(ctx, query, args)
}

func (r *SQLiteFeedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").Where(sb.Equal("url", url))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getOne(ctx, query, args)
}

func (r *SQLiteFeedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").OrderBy("id")
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getMany(ctx, query, args)
}

// ListFeedsSyncedBefore returns feeds whose last sync is strictly older than cutoff.
func (r *SQLiteFeedRepository) ListFeedsSyncedBefore(ctx context.Context, cutoff time.Time) ([]Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").
		Where(sb.LessThan("last_synced_at", FormatTime(cutoff))).
		OrderBy("last_synced_at", "id")
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getMany(ctx, query, args)
}

func (r *SQLiteFeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

// CreateFeed inserts feed and populates its ID. A duplicate URL surfaces as
// a unique violation, see IsUniqueViolation.
func (r *SQLiteFeedRepository) CreateFeed(ctx context.Context, feed *Feed) error {
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("feeds").
		Cols("title", "url", "description", "last_synced_at", "created_at").
		Values(feed.Title, feed.URL, feed.Description, FormatTime(feed.LastSyncedAt), FormatTime(feed.CreatedAt))
	query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted feed id: %w", err)
	}
	feed.ID = id

	return nil
}

// UpdateFeed persists metadata changes. The URL column is never updated.
func (r *SQLiteFeedRepository) UpdateFeed(ctx context.Context, feed *Feed) error {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update("feeds").
		Set(
			ub.Assign("title", feed.Title),
			ub.Assign("description", feed.Description),
			ub.Assign("last_synced_at", FormatTime(feed.LastSyncedAt)),
		).
		Where(ub.Equal("id", feed.ID))
	query, args := ub.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update feed %d: %w", feed.ID, sql.ErrNoRows)
	}

	return nil
}

// DeleteFeed removes the feed and, through the foreign key cascade, its entries.
func (r *SQLiteFeedRepository) DeleteFeed(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete feed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n > 0, nil
}

func (r *SQLiteFeedRepository) getOne(ctx context.Context, query string, args []any) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (r *SQLiteFeedRepository) getMany(ctx context.Context, query string, args []any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}

	return feeds, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFeed(s scannable) (*Feed, error) {
	var (
		feed       Feed
		lastSynced string
		createdAt  string
	)

	err := s.Scan(&feed.ID, &feed.Title, &feed.URL, &feed.Description, &lastSynced, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}

	if feed.LastSyncedAt, err = parseTime(lastSynced); err != nil {
		return nil, fmt.Errorf("failed to parse last_synced_at: %w", err)
	}
	if feed.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &feed, nil
}
