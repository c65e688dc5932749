package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	now          func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		now:          time.Now,
	}
}

// Run parses an RSS, Atom or JSON feed document fetched from sourceURL into a
// Snapshot. Items without a resolvable link are left out.
func (p *Parser) Run(sourceURL string, data []byte) (*Snapshot, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	snapshot := &Snapshot{
		SourceURL:   sourceURL,
		Title:       cmp.Or(cleanText(parsed.Title), DefaultFeedTitle),
		Description: cleanText(parsed.Description),
		Items:       make([]Item, 0, len(parsed.Items)),
	}

	now := p.now()
	for _, item := range parsed.Items {
		if normalized, ok := Normalize(item, now); ok {
			snapshot.Items = append(snapshot.Items, normalized)
		}
	}

	return snapshot, nil
}
