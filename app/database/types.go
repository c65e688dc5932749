package database

import (
	"time"
)

// Fixed width so that lexical order of stored timestamps equals chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

type Feed struct {
	ID           int64
	Title        string
	URL          string // Canonical feed URL, immutable after creation
	Description  string
	LastSyncedAt time.Time
	CreatedAt    time.Time
}

// Enclosure is either stored completely or not at all.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

type Entry struct {
	ID          int64
	FeedID      int64
	Title       string
	URL         string // Globally unique across all feeds
	Description string
	PublishedAt time.Time
	Enclosure   *Enclosure
	IsRead      bool
	CreatedAt   time.Time
}

// EntryWithFeed is an entry row joined with its owning feed's title.
type EntryWithFeed struct {
	Entry
	FeedTitle string
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// FormatTime renders t the way timestamps are stored, for callers that build
// predicates against timestamp columns.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
