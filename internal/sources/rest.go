package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/feed-pulse/internal/cache"
	"github.com/feed-pulse/internal/classify"
	"github.com/feed-pulse/internal/logger"
	"github.com/feed-pulse/internal/models"
)

// FieldMap holds the gjson paths that locate record fields inside one
// provider's response. Items is resolved against the response root; every
// other path is resolved against a single item.
type FieldMap struct {
	Items   string // Path to the article list
	ID      string // Native ID (required)
	Title   string // Title text (required)
	Content string // Body or description; may be empty
	Time    string // Publish timestamp in whatever format the provider uses
	URL     string // Absolute URL, or a fragment combined with LinkBase
}

// ProviderConfig fully describes one announcement upstream.
type ProviderConfig struct {
	Name     string
	Source   models.Source
	URL      string
	Params   [][2]string // Appended in order; "{limit}" values are substituted
	Headers  map[string]string
	Timeout  time.Duration
	CacheTTL time.Duration
	Fields   FieldMap
	LinkBase string // Prefix for relative URL fragments
}

// RESTAdapter is the generic announcement adapter: one instance per
// provider, behavior fully determined by its ProviderConfig. Each adapter
// owns its own cache, keyed by adapter name plus query, so cross-source
// cache collisions are structurally impossible.
type RESTAdapter struct {
	cfg    ProviderConfig
	client *http.Client
	cache  *cache.Store[[]models.Record]
}

// NewRESTAdapter builds an adapter from a provider config, applying the
// default timeout and a 5 minute cache TTL when the config leaves them zero.
func NewRESTAdapter(cfg ProviderConfig) *RESTAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &RESTAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache.New[[]models.Record](cfg.CacheTTL),
	}
}

// Name returns the provider name.
func (a *RESTAdapter) Name() string {
	return a.cfg.Name
}

// Fetch returns normalized records for the query, consulting the per-source
// cache before touching the network. All errors are returned as values; the
// caller decides whether a failed source matters.
func (a *RESTAdapter) Fetch(ctx context.Context, q Query) ([]models.Record, error) {
	cacheKey := a.cfg.Name + ":" + q.Key()
	if records, ok := a.cache.Get(cacheKey); ok {
		return records, nil
	}

	params := make([][2]string, len(a.cfg.Params))
	for i, p := range a.cfg.Params {
		if p[1] == "{limit}" {
			limit := q.Limit
			if limit <= 0 {
				limit = 20
			}
			params[i] = [2]string{p[0], fmt.Sprintf("%d", limit)}
		} else {
			params[i] = p
		}
	}

	body, err := httpGet(ctx, a.client, buildURL(a.cfg.URL, params), a.cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
	}

	items := gjson.GetBytes(body, a.cfg.Fields.Items)
	if !items.IsArray() {
		return nil, fmt.Errorf("%s: response has no array at %q", a.cfg.Name, a.cfg.Fields.Items)
	}

	records := make([]models.Record, 0, len(items.Array()))
	skipped := 0
	for _, item := range items.Array() {
		record, ok := a.normalize(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if skipped > 0 {
		logger.Warn("%s: skipped %d malformed records", a.cfg.Name, skipped)
	}

	a.cache.Set(cacheKey, records)
	return records, nil
}

// normalize maps one raw item into a Record. A missing native ID or title
// makes the item unmappable; it is skipped without failing the batch.
func (a *RESTAdapter) normalize(item gjson.Result) (models.Record, bool) {
	nativeID := item.Get(a.cfg.Fields.ID).String()
	title := item.Get(a.cfg.Fields.Title).String()
	if nativeID == "" || title == "" {
		return models.Record{}, false
	}

	content := ""
	if a.cfg.Fields.Content != "" {
		content = item.Get(a.cfg.Fields.Content).String()
	}

	url := ""
	if a.cfg.Fields.URL != "" {
		if fragment := item.Get(a.cfg.Fields.URL).String(); fragment != "" {
			url = a.cfg.LinkBase + fragment
		}
	}

	result := classify.Classify(title, content)

	return models.Record{
		ID:          models.NamespacedID(a.cfg.Source, nativeID),
		Source:      a.cfg.Source,
		Title:       title,
		Summary:     models.Summarize(content),
		Content:     content,
		Category:    result.Category,
		Importance:  result.Importance,
		PublishTime: ParseTimestamp(item.Get(a.cfg.Fields.Time)),
		Tags:        result.Tags,
		URL:         url,
		IsHot:       result.Importance == models.ImportanceHigh,
	}, true
}
