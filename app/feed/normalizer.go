package feed

import (
	"cmp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
)

// Normalize turns a parsed item into a canonical Item. It returns false when
// the item has neither a link nor an enclosure link; such items are dropped.
func Normalize(item *gofeed.Item, now time.Time) (Item, bool) {
	if item == nil {
		return Item{}, false
	}

	url := resolveURL(item)
	if url == "" {
		return Item{}, false
	}

	normalized := Item{
		Title:       cmp.Or(cleanText(item.Title), DefaultEntryTitle),
		URL:         url,
		Description: cleanText(item.Description),
		PublishedAt: now.UTC(),
		Enclosure:   extractEnclosure(item),
	}

	switch {
	case item.PublishedParsed != nil:
		normalized.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		normalized.PublishedAt = item.UpdatedParsed.UTC()
	}

	return normalized, true
}

func resolveURL(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if link := strings.TrimSpace(enclosure.URL); link != "" {
			return link
		}
	}

	return ""
}

// RSS 2.0 allows one enclosure per item, so only the first is considered.
func extractEnclosure(item *gofeed.Item) *Enclosure {
	if len(item.Enclosures) == 0 || item.Enclosures[0] == nil {
		return nil
	}
	enclosure := item.Enclosures[0]

	url := strings.TrimSpace(enclosure.URL)
	mimeType := strings.TrimSpace(enclosure.Type)
	if url == "" || mimeType == "" {
		return nil
	}

	length, err := strconv.ParseInt(strings.TrimSpace(enclosure.Length), 10, 64)
	if err != nil || length < 0 {
		return nil
	}

	return &Enclosure{URL: url, Type: mimeType, Length: length}
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
