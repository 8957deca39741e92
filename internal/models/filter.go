package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ImportanceMode selects how the importance filter compares levels.
// The two caller-facing surfaces genuinely diverge here: the announcements
// view uses exact-match, the feeds view uses an ordinal floor. Both are kept
// as explicit modes instead of unifying them.
type ImportanceMode string

const (
	// ImportanceExact matches only records at exactly the requested level.
	ImportanceExact ImportanceMode = "exact"
	// ImportanceFloor matches records at or above the requested level.
	ImportanceFloor ImportanceMode = "floor"
)

// Filter is a declarative record filter. All fields are optional and
// conjunctive: a record must satisfy every set field. List fields match when
// any element matches (OR within the list).
type Filter struct {
	Sources        []Source       `json:"sources,omitempty"`
	Categories     []Category     `json:"categories,omitempty"`
	Importance     Importance     `json:"importance,omitempty"` // Zero value means unset
	ImportanceMode ImportanceMode `json:"importance_mode,omitempty"`
	Symbols        []string       `json:"symbols,omitempty"` // Matched against title, content, and tags
	Tags           []string       `json:"tags,omitempty"`
	From           time.Time      `json:"from,omitempty"` // Half-open range [From, To)
	To             time.Time      `json:"to,omitempty"`
	HotOnly        bool           `json:"hot_only,omitempty"`
	Limit          int            `json:"limit,omitempty"` // 0 means the caller's default
	Offset         int            `json:"offset,omitempty"`
}

// Mode returns the effective importance comparison mode, defaulting to exact.
func (f Filter) Mode() ImportanceMode {
	if f.ImportanceMode == ImportanceFloor {
		return ImportanceFloor
	}
	return ImportanceExact
}

// Signature returns a canonical string serialization of the filter, used as
// the aggregate-cache key. Equal filters always produce equal signatures and
// distinct filters can never collide; list fields are sorted so element order
// does not change the key.
func (f Filter) Signature() string {
	var b strings.Builder

	writeList := func(name string, values []string) {
		if len(values) == 0 {
			return
		}
		sorted := make([]string, len(values))
		copy(sorted, values)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "%s=%s|", name, strings.Join(sorted, ","))
	}

	srcs := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		srcs[i] = string(s)
	}
	writeList("src", srcs)

	cats := make([]string, len(f.Categories))
	for i, c := range f.Categories {
		cats[i] = string(c)
	}
	writeList("cat", cats)

	if f.Importance != "" {
		fmt.Fprintf(&b, "imp=%s:%s|", f.Importance, f.Mode())
	}
	writeList("sym", f.Symbols)
	writeList("tag", f.Tags)
	if !f.From.IsZero() {
		fmt.Fprintf(&b, "from=%d|", f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		fmt.Fprintf(&b, "to=%d|", f.To.UnixMilli())
	}
	if f.HotOnly {
		b.WriteString("hot=1|")
	}
	fmt.Fprintf(&b, "limit=%d|offset=%d", f.Limit, f.Offset)

	return b.String()
}
