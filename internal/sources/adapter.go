// Package sources contains the upstream provider adapters. Each adapter
// talks to exactly one external API, maps its response into the unified
// record or ticker shape, and isolates every failure to itself: an adapter
// returns an error value to the aggregator, it never panics past its own
// boundary and never fails the whole batch for one bad record.
//
// Instead of one hand-written fetch function per exchange, the announcement
// and ticker adapters are generic and driven by a per-provider config (base
// URL, query parameters, and gjson field paths). Adding a provider means
// adding a config, not code.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/feed-pulse/internal/models"
)

// DefaultTimeout bounds every upstream request unless the provider config
// overrides it.
const DefaultTimeout = 10 * time.Second

const maxRetries = 3

// Query narrows an announcement fetch. The zero value asks for the
// provider's default page.
type Query struct {
	Limit int
}

// Key returns the cache-key fragment for this query.
func (q Query) Key() string {
	return fmt.Sprintf("limit=%d", q.Limit)
}

// Adapter fetches and normalizes records from one upstream provider.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]models.Record, error)
}

// TickerAdapter fetches 24h market tickers from one exchange.
type TickerAdapter interface {
	Exchange() string
	FetchTickers(ctx context.Context) ([]models.Ticker, error)
}

// httpGet performs a GET with bounded retries, backing off linearly on
// network errors and 5xx responses. Non-5xx error statuses are returned
// immediately; retrying a 4xx never helps.
func httpGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// buildURL appends query parameters to a base URL. Parameters are appended
// in the order given so provider configs produce stable URLs.
func buildURL(base string, params [][2]string) string {
	if len(params) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	for _, p := range params {
		b.WriteString(sep)
		b.WriteString(p[0])
		b.WriteString("=")
		b.WriteString(p[1])
		sep = "&"
	}
	return b.String()
}

// timeLayouts are tried in order when an upstream publishes timestamps as
// formatted strings rather than epoch numbers.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp coerces the wildly varying upstream timestamp formats
// (epoch seconds, epoch millis, numeric strings, ISO strings) into a
// time.Time. A malformed or missing timestamp falls back to now rather than
// failing the record: a feed item with a bad date is still worth serving.
func ParseTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return epochToTime(v.Int())
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return time.Now()
		}
		if n, err := parseInt(s); err == nil {
			return epochToTime(n)
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

// epochToTime interprets an epoch value as seconds or milliseconds by
// magnitude: anything past 1e12 can only be millis (that is year 33658 in
// seconds).
func epochToTime(n int64) time.Time {
	if n <= 0 {
		return time.Now()
	}
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

func parseInt(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	// Reject partial parses like "2024-01-02".
	if fmt.Sprintf("%d", n) != s {
		return 0, fmt.Errorf("not a plain integer: %q", s)
	}
	return n, nil
}

// NormalizeSymbol strips venue-specific separators and uppercases, so
// "btc-usdt", "BTC_USDT", and "BTCUSDT" all aggregate under one key.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	for _, sep := range []string{"-", "_", "/"} {
		symbol = strings.ReplaceAll(symbol, sep, "")
	}
	return symbol
}
