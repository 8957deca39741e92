package aggregator

import (
	"sort"
	"strings"

	"github.com/feed-pulse/internal/models"
)

// ApplyFilter applies a declarative filter to a record set and produces the
// final deterministic ordering. Predicates are conjunctive across fields and
// disjunctive within list fields. The terminal sort by publish time
// descending is unconditional and always runs after filtering, before the
// offset/limit slice — adapter completion order must never leak into result
// order.
func ApplyFilter(records []models.Record, f models.Filter, defaultLimit int) []models.Record {
	matched := make([]models.Record, 0, len(records))
	for _, r := range records {
		if matches(r, f) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PublishTime.After(matched[j].PublishTime)
	})

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []models.Record{}
	}
	matched = matched[offset:]

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

func matches(r models.Record, f models.Filter) bool {
	if len(f.Sources) > 0 && !containsSource(f.Sources, r.Source) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, r.Category) {
		return false
	}
	if f.Importance != "" && !importanceMatches(r.Importance, f) {
		return false
	}
	if len(f.Tags) > 0 && !anyTagMatches(r.Tags, f.Tags) {
		return false
	}
	if len(f.Symbols) > 0 && !anySymbolMatches(r, f.Symbols) {
		return false
	}
	if !f.From.IsZero() && r.PublishTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.PublishTime.Before(f.To) {
		return false
	}
	if f.HotOnly && !r.IsHot {
		return false
	}
	return true
}

// importanceMatches applies the filter's comparison mode: exact for the
// announcements-style surface, ordinal floor for the feeds-style surface.
func importanceMatches(level models.Importance, f models.Filter) bool {
	if f.Mode() == models.ImportanceFloor {
		return level.AtLeast(f.Importance)
	}
	return level == f.Importance
}

func containsSource(haystack []models.Source, needle models.Source) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsCategory(haystack []models.Category, needle models.Category) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

func anyTagMatches(recordTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range recordTags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

// anySymbolMatches checks a symbol against the record's title, content, and
// tags. Symbols are matched case-insensitively as substrings of the text and
// exactly (fold) against tags.
func anySymbolMatches(r models.Record, symbols []string) bool {
	title := strings.ToUpper(r.Title)
	content := strings.ToUpper(r.Content)
	for _, s := range symbols {
		sym := strings.ToUpper(s)
		if sym == "" {
			continue
		}
		if strings.Contains(title, sym) || strings.Contains(content, sym) {
			return true
		}
		for _, t := range r.Tags {
			if strings.EqualFold(t, sym) {
				return true
			}
		}
	}
	return false
}
