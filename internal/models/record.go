// Package models defines the core domain entities for the feedpulse application.
// These models represent normalized feed records, market tickers, and price alerts.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Record: one normalized announcement, feed item, or on-chain event. Every
//     upstream shape is converted into this one entity at ingestion time.
//   - Ticker: a 24h market ticker for one symbol on one exchange. Tickers for
//     the same symbol on different exchanges coexist and are only merged at
//     query time by the price aggregation view.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Source identifies the upstream provider a record came from.
type Source string

const (
	SourceBinance  Source = "binance"
	SourceOKX      Source = "okx"
	SourceBybit    Source = "bybit"
	SourceOnChain  Source = "onchain"
	SourceInternal Source = "aggregator-internal"
)

// Category is the closed tag set a record is classified into.
type Category string

const (
	CategoryListing     Category = "listing"
	CategoryDelisting   Category = "delisting"
	CategoryTrading     Category = "trading"
	CategoryDerivatives Category = "derivatives"
	CategoryEarn        Category = "earn"
	CategoryMaintenance Category = "maintenance"
	CategoryPromotion   Category = "promotion"
	CategorySecurity    Category = "security"
	CategoryWallet      Category = "wallet"
	CategoryAPI         Category = "api"
	CategoryMobile      Category = "mobile"
	CategoryRegulatory  Category = "regulatory"
	CategoryService     Category = "service"
	CategoryGeneral     Category = "general"
	CategoryMarket      Category = "market"
	CategoryDeFi        Category = "defi"
)

// Importance is an ordered severity level: low < medium < high.
// It is always assigned by the classifier, never supplied by upstream.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Rank returns the ordinal position of the importance level, used by
// floor-mode filtering. Unknown values rank below low.
func (i Importance) Rank() int {
	switch i {
	case ImportanceLow:
		return 1
	case ImportanceMedium:
		return 2
	case ImportanceHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether i is at or above the given floor.
func (i Importance) AtLeast(floor Importance) bool {
	return i.Rank() >= floor.Rank()
}

// MaxSummaryLen bounds the summary text computed at normalization time,
// counted in characters, not bytes: several upstreams publish CJK text.
const MaxSummaryLen = 180

// Record is the unified shape all announcements, feeds, and on-chain events
// are converted into. Once constructed a Record is treated as immutable:
// re-fetching the same native ID produces a new value that replaces the old
// one wholesale, never a field-level merge.
type Record struct {
	ID          string     `json:"id"` // Namespaced: "<source>_<nativeId>"
	Source      Source     `json:"source"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"` // Bounded truncation of Content, fixed at ingestion
	Content     string     `json:"content,omitempty"`
	Category    Category   `json:"category"`
	Importance  Importance `json:"importance"`
	PublishTime time.Time  `json:"publish_time"` // Sole sort key for recency
	Tags        []string   `json:"tags,omitempty"`
	URL         string     `json:"url,omitempty"`
	IsHot       bool       `json:"is_hot"`
}

// NamespacedID builds a globally unique record ID from a source and the
// provider's native ID, so identical native IDs from different sources can
// never collide.
func NamespacedID(source Source, nativeID string) string {
	return fmt.Sprintf("%s_%s", source, nativeID)
}

// Summarize produces the bounded summary stored on a record. It is computed
// once at normalization time and never re-derived later.
func Summarize(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= MaxSummaryLen {
		return content
	}
	// Truncate on rune boundaries; a byte slice could split a multi-byte
	// character and persist invalid UTF-8.
	runes := []rune(content)
	return string(runes[:MaxSummaryLen]) + "..."
}

// Validate checks that all record fields are valid.
func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.New("record ID must not be empty")
	}
	if r.Source == "" {
		return errors.New("record source must not be empty")
	}
	if r.Title == "" {
		return errors.New("record title must not be empty")
	}
	if r.Category == "" {
		return errors.New("record category must not be empty")
	}
	if r.Importance.Rank() == 0 {
		return fmt.Errorf("record importance %q is not a valid level", r.Importance)
	}
	if r.PublishTime.IsZero() {
		return errors.New("record publish time must be set")
	}
	return nil
}
