package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/feed-pulse/internal/cache"
	"github.com/feed-pulse/internal/models"
)

// TickerFieldMap holds the gjson paths for one exchange's 24h ticker
// response. Only Items, Symbol, and Price are required; a field absent
// upstream simply maps to zero, never to a nil that downstream code has to
// guard against.
type TickerFieldMap struct {
	Items         string
	Symbol        string
	Price         string
	PriceChange   string
	ChangePercent string
	Volume        string
	QuoteVolume   string
	High          string
	Low           string
	Open          string
	Time          string
}

// TickerConfig fully describes one exchange ticker upstream.
type TickerConfig struct {
	Exchange     string
	URL          string
	Timeout      time.Duration
	CacheTTL     time.Duration
	Fields       TickerFieldMap
	PercentScale float64 // Multiplier onto ChangePercent (Bybit reports fractions); 0 means 1
}

// RESTTickerAdapter fetches 24h tickers from one exchange, config-driven
// like RESTAdapter. Ticker caches run a much shorter TTL than announcement
// caches; price staleness is visible to users in a way stale announcements
// are not.
type RESTTickerAdapter struct {
	cfg    TickerConfig
	client *http.Client
	cache  *cache.Store[[]models.Ticker]
}

// NewRESTTickerAdapter builds a ticker adapter, defaulting the timeout to
// DefaultTimeout and the cache TTL to 30 seconds.
func NewRESTTickerAdapter(cfg TickerConfig) *RESTTickerAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.PercentScale == 0 {
		cfg.PercentScale = 1
	}
	return &RESTTickerAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache.New[[]models.Ticker](cfg.CacheTTL),
	}
}

// Exchange returns the exchange name.
func (a *RESTTickerAdapter) Exchange() string {
	return a.cfg.Exchange
}

// FetchTickers returns the exchange's current 24h tickers, cached per
// adapter for the configured TTL.
func (a *RESTTickerAdapter) FetchTickers(ctx context.Context) ([]models.Ticker, error) {
	cacheKey := a.cfg.Exchange + ":tickers"
	if tickers, ok := a.cache.Get(cacheKey); ok {
		return tickers, nil
	}

	body, err := httpGet(ctx, a.client, a.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s tickers: %w", a.cfg.Exchange, err)
	}

	items := gjson.GetBytes(body, a.cfg.Fields.Items)
	if !items.IsArray() {
		return nil, fmt.Errorf("%s tickers: response has no array at %q", a.cfg.Exchange, a.cfg.Fields.Items)
	}

	now := time.Now()
	tickers := make([]models.Ticker, 0, len(items.Array()))
	for _, item := range items.Array() {
		symbol := NormalizeSymbol(item.Get(a.cfg.Fields.Symbol).String())
		price := item.Get(a.cfg.Fields.Price).Float()
		if symbol == "" || price <= 0 {
			continue
		}

		ts := now
		if a.cfg.Fields.Time != "" {
			ts = ParseTimestamp(item.Get(a.cfg.Fields.Time))
		}

		open := item.Get(a.cfg.Fields.Open).Float()
		change := item.Get(a.cfg.Fields.PriceChange).Float()
		if change == 0 && open > 0 {
			change = price - open
		}
		changePct := item.Get(a.cfg.Fields.ChangePercent).Float() * a.cfg.PercentScale
		if changePct == 0 && open > 0 {
			changePct = (price - open) / open * 100
		}

		tickers = append(tickers, models.Ticker{
			Symbol:             symbol,
			Price:              price,
			PriceChange:        change,
			PriceChangePercent: changePct,
			Volume:             item.Get(a.cfg.Fields.Volume).Float(),
			QuoteVolume:        item.Get(a.cfg.Fields.QuoteVolume).Float(),
			High:               item.Get(a.cfg.Fields.High).Float(),
			Low:                item.Get(a.cfg.Fields.Low).Float(),
			Open:               open,
			Close:              price,
			Exchange:           a.cfg.Exchange,
			Timestamp:          ts,
		})
	}

	a.cache.Set(cacheKey, tickers)
	return tickers, nil
}
