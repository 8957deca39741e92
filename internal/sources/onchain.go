package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/feed-pulse/internal/cache"
	"github.com/feed-pulse/internal/classify"
	"github.com/feed-pulse/internal/logger"
	"github.com/feed-pulse/internal/models"
)

// OnChainConfig describes a large-transfer event feed.
type OnChainConfig struct {
	Name         string
	URL          string
	APIKey       string
	Timeout      time.Duration
	CacheTTL     time.Duration
	HotThreshold float64 // USD value at which a transfer is flagged hot
}

// OnChainAdapter turns a whale-transfer feed into normalized records. It is
// a dedicated Adapter implementation rather than a RESTAdapter config
// because on-chain events have no title upstream; the adapter composes one
// from the transfer itself.
type OnChainAdapter struct {
	cfg    OnChainConfig
	client *http.Client
	cache  *cache.Store[[]models.Record]
}

// NewOnChainAdapter builds the on-chain adapter. The hot threshold defaults
// to one million USD.
func NewOnChainAdapter(cfg OnChainConfig) *OnChainAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.HotThreshold <= 0 {
		cfg.HotThreshold = 1_000_000
	}
	return &OnChainAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache.New[[]models.Record](cfg.CacheTTL),
	}
}

// Name returns the provider name.
func (a *OnChainAdapter) Name() string {
	return a.cfg.Name
}

// Fetch returns recent large transfers as records.
func (a *OnChainAdapter) Fetch(ctx context.Context, q Query) ([]models.Record, error) {
	cacheKey := a.cfg.Name + ":" + q.Key()
	if records, ok := a.cache.Get(cacheKey); ok {
		return records, nil
	}

	headers := map[string]string{}
	if a.cfg.APIKey != "" {
		headers["X-API-Key"] = a.cfg.APIKey
	}
	body, err := httpGet(ctx, a.client, a.cfg.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
	}

	items := gjson.GetBytes(body, "transactions")
	if !items.IsArray() {
		return nil, fmt.Errorf("%s: response has no transactions array", a.cfg.Name)
	}

	records := make([]models.Record, 0, len(items.Array()))
	skipped := 0
	for _, item := range items.Array() {
		hash := item.Get("hash").String()
		symbol := strings.ToUpper(item.Get("symbol").String())
		if hash == "" || symbol == "" {
			skipped++
			continue
		}

		amount := item.Get("amount").Float()
		usd := item.Get("amount_usd").Float()
		chain := strings.ToLower(item.Get("blockchain").String())

		title := fmt.Sprintf("%s transfer: %.2f %s ($%.0f)", symbol, amount, symbol, usd)
		content := fmt.Sprintf("On-chain transfer of %.2f %s (%.0f USD) on %s, tx %s",
			amount, symbol, usd, chain, hash)

		result := classify.Classify(title, content)
		tags := result.Tags
		if chain != "" {
			tags = appendUnique(tags, chain)
		}

		records = append(records, models.Record{
			ID:          models.NamespacedID(models.SourceOnChain, hash),
			Source:      models.SourceOnChain,
			Title:       title,
			Summary:     models.Summarize(content),
			Content:     content,
			// Transfers are market activity, not announcements; the keyword
			// tables have nothing to say about them.
			Category:    models.CategoryMarket,
			Importance:  result.Importance,
			PublishTime: ParseTimestamp(item.Get("timestamp")),
			Tags:        tags,
			IsHot:       usd >= a.cfg.HotThreshold,
		})
	}
	if skipped > 0 {
		logger.Warn("%s: skipped %d malformed transfers", a.cfg.Name, skipped)
	}

	a.cache.Set(cacheKey, records)
	return records, nil
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
