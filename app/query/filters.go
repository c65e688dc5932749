package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lysyi3m/feedsync/app/database"
)

// Filters are the recognized listing options. Nil or empty fields are not applied.
type Filters struct {
	FeedID    *int64
	StartDate *time.Time // inclusive
	EndDate   *time.Time // inclusive
	Search    string
	IsRead    *bool
}

// entryFilters translates f into AND-ed storage predicates.
func (f Filters) entryFilters() []database.EntryFilter {
	var filters []database.EntryFilter

	if f.FeedID != nil {
		filters = append(filters, &FeedFilter{FeedID: *f.FeedID})
	}
	if f.StartDate != nil || f.EndDate != nil {
		filters = append(filters, &DateRangeFilter{Start: f.StartDate, End: f.EndDate})
	}
	if strings.TrimSpace(f.Search) != "" {
		filters = append(filters, &SearchFilter{Term: f.Search})
	}
	if f.IsRead != nil {
		filters = append(filters, &ReadFilter{IsRead: *f.IsRead})
	}

	return filters
}

type FeedFilter struct {
	FeedID int64
}

func (f *FeedFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Equal("e.feed_id", f.FeedID))
}

type DateRangeFilter struct {
	Start *time.Time
	End   *time.Time
}

func (f *DateRangeFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	if f.Start != nil {
		sb.Where(sb.GreaterEqualThan("e.published_at", database.FormatTime(*f.Start)))
	}
	if f.End != nil {
		sb.Where(sb.LessEqualThan("e.published_at", database.FormatTime(*f.End)))
	}
}

// SearchFilter matches the term, as given, as a substring of title or
// description under Unicode case folding. LIKE wildcards in the term match
// literally.
type SearchFilter struct {
	Term string
}

func (f *SearchFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	pattern := "%" + escapeLike(database.Fold(f.Term)) + "%"
	sb.Where(sb.Or(
		fmt.Sprintf(`%s(e.title) LIKE %s ESCAPE '\'`, database.FoldFunction, sb.Args.Add(pattern)),
		fmt.Sprintf(`%s(e.description) LIKE %s ESCAPE '\'`, database.FoldFunction, sb.Args.Add(pattern)),
	))
}

type ReadFilter struct {
	IsRead bool
}

func (f *ReadFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Equal("e.is_read", f.IsRead))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
