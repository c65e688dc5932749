package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

var entryColumns = []string{
	"e.id", "e.feed_id", "e.title", "e.url", "e.description", "e.published_at",
	"e.enclosure_url", "e.enclosure_type", "e.enclosure_length", "e.is_read", "e.created_at",
}

var _ EntryRepository = (*SQLiteEntryRepository)(nil)

type SQLiteEntryRepository struct {
	db DBTX
}

func NewEntryRepository(db DBTX) *SQLiteEntryRepository {
	return &SQLiteEntryRepository{db: db}
}

func (r *SQLiteEntryRepository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(entryColumns...).From("entries e").Where(sb.Equal("e.id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getOne(ctx, query, args)
}

func (r *SQLiteEntryRepository) GetEntryByURL(ctx context.Context, url string) (*Entry, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(entryColumns...).From("entries e").Where(sb.Equal("e.url", url))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	return r.getOne(ctx, query, args)
}

func (r *SQLiteEntryRepository) CountEntries(ctx context.Context, feedID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE feed_id = ?", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// InsertEntry inserts entry unless an entry with the same URL already exists
// anywhere in the store. It reports whether a row was written; the UNIQUE
// constraint on url decides, so concurrent inserts of one URL never fail.
func (r *SQLiteEntryRepository) InsertEntry(ctx context.Context, entry *Entry) (bool, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var encURL, encType sql.NullString
	var encLength sql.NullInt64
	if entry.Enclosure != nil {
		encURL = sql.NullString{String: entry.Enclosure.URL, Valid: true}
		encType = sql.NullString{String: entry.Enclosure.Type, Valid: true}
		encLength = sql.NullInt64{Int64: entry.Enclosure.Length, Valid: true}
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("entries").
		Cols("feed_id", "title", "url", "description", "published_at",
			"enclosure_url", "enclosure_type", "enclosure_length", "is_read", "created_at").
		Values(entry.FeedID, entry.Title, entry.URL, entry.Description, FormatTime(entry.PublishedAt),
			encURL, encType, encLength, entry.IsRead, FormatTime(entry.CreatedAt))
	ib.SQL("ON CONFLICT(url) DO NOTHING")
	query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get inserted entry id: %w", err)
	}
	entry.ID = id

	return true, nil
}

func (r *SQLiteEntryRepository) DeleteEntriesByFeed(ctx context.Context, feedID int64) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE feed_id = ?", feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// SetEntryRead updates the read flag, the only mutable entry column.
func (r *SQLiteEntryRepository) SetEntryRead(ctx context.Context, id int64, read bool) (bool, error) {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update("entries").Set(ub.Assign("is_read", read)).Where(ub.Equal("id", id))
	query, args := ub.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update entry read state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// FindEntries returns one page of entries matching every filter, newest first.
func (r *SQLiteEntryRepository) FindEntries(ctx context.Context, filters []EntryFilter, limit, offset int) ([]EntryWithFeed, error) {
	sb := newEntrySelect(filters)
	sb.Select(append(entryColumns, "f.title")...)
	sb.OrderBy("e.published_at DESC", "e.id DESC")
	sb.Limit(limit).Offset(offset)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]EntryWithFeed, 0, min(limit, 100))
	for rows.Next() {
		var feedTitle string
		entry, err := scanEntry(rows, &feedTitle)
		if err != nil {
			return nil, err
		}
		entries = append(entries, EntryWithFeed{Entry: *entry, FeedTitle: feedTitle})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// CountFilteredEntries counts entries matching the same predicate as
// FindEntries, without ordering or pagination.
func (r *SQLiteEntryRepository) CountFilteredEntries(ctx context.Context, filters []EntryFilter) (int, error) {
	sb := newEntrySelect(filters)
	sb.Select("COUNT(*)")
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func newEntrySelect(filters []EntryFilter) *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.NewSelectBuilder()
	sb.From("entries e").Join("feeds f", "f.id = e.feed_id")
	for _, filter := range filters {
		filter.ApplyFilter(sb)
	}
	return sb
}

func (r *SQLiteEntryRepository) getOne(ctx context.Context, query string, args []any) (*Entry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanEntry(s scannable, extra ...any) (*Entry, error) {
	var (
		entry       Entry
		publishedAt string
		createdAt   string
		encURL      sql.NullString
		encType     sql.NullString
		encLength   sql.NullInt64
	)

	dest := []any{
		&entry.ID, &entry.FeedID, &entry.Title, &entry.URL, &entry.Description, &publishedAt,
		&encURL, &encType, &encLength, &entry.IsRead, &createdAt,
	}
	err := s.Scan(append(dest, extra...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if entry.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse published_at: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	if encURL.Valid && encType.Valid && encLength.Valid {
		entry.Enclosure = &Enclosure{URL: encURL.String, Type: encType.String, Length: encLength.Int64}
	}

	return &entry, nil
}
