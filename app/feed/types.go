package feed

import (
	"time"
)

const (
	DefaultFeedTitle  = "Untitled Feed"
	DefaultEntryTitle = "Untitled Entry"
)

// Snapshot is the normalized result of one fetch. Items never contain
// entries that were dropped during normalization.
type Snapshot struct {
	SourceURL   string
	Title       string
	Description string
	Items       []Item
}

type Item struct {
	Title       string
	URL         string
	Description string
	PublishedAt time.Time
	Enclosure   *Enclosure // nil unless URL, type and length are all known
}

type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Subscription is a feed declared in a YAML file of the feeds directory.
type Subscription struct {
	Name    string // Derived from filename (without .yml extension)
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

func (s Subscription) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
