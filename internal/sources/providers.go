package sources

import (
	"time"

	"github.com/feed-pulse/internal/models"
)

// Provider presets for the exchanges feedpulse ships with. Base URLs and
// TTLs can be overridden from config; field paths are fixed per provider
// because they describe the provider's response shape, not deployment
// choices.

// BinanceAnnouncements returns the adapter config for Binance's CMS
// announcement catalog.
func BinanceAnnouncements(baseURL string, ttl time.Duration) ProviderConfig {
	if baseURL == "" {
		baseURL = "https://www.binance.com/bapi/composite/v1/public/cms/article/list/query"
	}
	return ProviderConfig{
		Name:     "binance-announcements",
		Source:   models.SourceBinance,
		URL:      baseURL,
		Params:   [][2]string{{"type", "1"}, {"pageNo", "1"}, {"pageSize", "{limit}"}},
		CacheTTL: ttl,
		Fields: FieldMap{
			Items:   "data.catalogs.0.articles",
			ID:      "id",
			Title:   "title",
			Content: "body",
			Time:    "releaseDate", // epoch millis
			URL:     "code",
		},
		LinkBase: "https://www.binance.com/en/support/announcement/",
	}
}

// OKXAnnouncements returns the adapter config for OKX support announcements.
func OKXAnnouncements(baseURL string, ttl time.Duration) ProviderConfig {
	if baseURL == "" {
		baseURL = "https://www.okx.com/api/v5/support/announcements"
	}
	return ProviderConfig{
		Name:     "okx-announcements",
		Source:   models.SourceOKX,
		URL:      baseURL,
		Params:   [][2]string{{"page", "1"}},
		CacheTTL: ttl,
		Fields: FieldMap{
			Items: "data.0.details",
			ID:    "url", // OKX publishes no numeric ID; the URL slug is the stable native key
			Title: "title",
			Time:  "pTime", // epoch millis as string
			URL:   "url",
		},
	}
}

// BybitAnnouncements returns the adapter config for Bybit announcements.
func BybitAnnouncements(baseURL string, ttl time.Duration) ProviderConfig {
	if baseURL == "" {
		baseURL = "https://api.bybit.com/v5/announcements/index"
	}
	return ProviderConfig{
		Name:     "bybit-announcements",
		Source:   models.SourceBybit,
		URL:      baseURL,
		Params:   [][2]string{{"locale", "en-US"}, {"limit", "{limit}"}},
		CacheTTL: ttl,
		Fields: FieldMap{
			Items:   "result.list",
			ID:      "url",
			Title:   "title",
			Content: "description",
			Time:    "dateTimestamp", // epoch millis
			URL:     "url",
		},
	}
}

// BinanceTickers returns the ticker config for Binance's 24h spot tickers.
func BinanceTickers(baseURL string, ttl time.Duration) TickerConfig {
	if baseURL == "" {
		baseURL = "https://api.binance.com/api/v3/ticker/24hr"
	}
	return TickerConfig{
		Exchange: "binance",
		URL:      baseURL,
		CacheTTL: ttl,
		Fields: TickerFieldMap{
			Items:         "@this",
			Symbol:        "symbol",
			Price:         "lastPrice",
			PriceChange:   "priceChange",
			ChangePercent: "priceChangePercent",
			Volume:        "volume",
			QuoteVolume:   "quoteVolume",
			High:          "highPrice",
			Low:           "lowPrice",
			Open:          "openPrice",
			Time:          "closeTime", // epoch millis
		},
	}
}

// OKXTickers returns the ticker config for OKX spot tickers.
func OKXTickers(baseURL string, ttl time.Duration) TickerConfig {
	if baseURL == "" {
		baseURL = "https://www.okx.com/api/v5/market/tickers?instType=SPOT"
	}
	return TickerConfig{
		Exchange: "okx",
		URL:      baseURL,
		CacheTTL: ttl,
		Fields: TickerFieldMap{
			Items:       "data",
			Symbol:      "instId", // "BTC-USDT"; NormalizeSymbol strips the dash
			Price:       "last",
			Volume:      "vol24h",
			QuoteVolume: "volCcy24h",
			High:        "high24h",
			Low:         "low24h",
			Open:        "open24h", // change fields derived from open
			Time:        "ts",      // epoch millis as string
		},
	}
}

// BybitTickers returns the ticker config for Bybit spot tickers.
func BybitTickers(baseURL string, ttl time.Duration) TickerConfig {
	if baseURL == "" {
		baseURL = "https://api.bybit.com/v5/market/tickers?category=spot"
	}
	return TickerConfig{
		Exchange:     "bybit",
		URL:          baseURL,
		CacheTTL:     ttl,
		PercentScale: 100, // Bybit reports price24hPcnt as a fraction
		Fields: TickerFieldMap{
			Items:         "result.list",
			Symbol:        "symbol",
			Price:         "lastPrice",
			ChangePercent: "price24hPcnt",
			Volume:        "volume24h",
			QuoteVolume:   "turnover24h",
			High:          "highPrice24h",
			Low:           "lowPrice24h",
			Open:          "prevPrice24h",
		},
	}
}
