// Package aggregator implements the fan-out aggregation service: it invokes
// every registered source adapter concurrently, collects whatever succeeds,
// filters and orders the combined set, and caches the final view per filter
// signature. One failing source never aborts a batch; even all sources
// failing yields an empty result, not an error — "no news right now" is a
// valid state distinct from "system broken".
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feed-pulse/internal/cache"
	"github.com/feed-pulse/internal/logger"
	"github.com/feed-pulse/internal/models"
	"github.com/feed-pulse/internal/sources"
)

// RecordStore is the persistence collaborator surface the aggregator needs.
// The store is opaque durable storage; failing to persist never fails the
// read path.
type RecordStore interface {
	UpsertRecords(ctx context.Context, records []models.Record) error
	CountByCategory(ctx context.Context) (map[models.Category]int, error)
}

// Options tune the aggregation service.
type Options struct {
	DefaultLimit int           // Result limit when the filter leaves Limit zero
	FetchLimit   int           // Per-source page size requested on fan-out
	AggregateTTL time.Duration // TTL of the combined-view cache; intentionally shorter than per-source TTLs
	FetchTimeout time.Duration // Outer bound on one whole fan-out, slightly above the per-adapter timeout
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		DefaultLimit: 20,
		FetchLimit:   50,
		AggregateTTL: time.Minute,
		FetchTimeout: sources.DefaultTimeout + 2*time.Second,
	}
}

// Service owns the adapters, the aggregate cache, and the query surface the
// route layer calls. The caches are created here and die with the service;
// there is no process-global cache state.
type Service struct {
	adapters []sources.Adapter
	tickers  []sources.TickerAdapter
	store    RecordStore
	opts     Options

	aggCache *cache.Store[[]models.Record]
}

// New creates an aggregation service. store may be nil (records then live
// only in caches).
func New(adapters []sources.Adapter, tickers []sources.TickerAdapter, store RecordStore, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 50
	}
	if opts.AggregateTTL <= 0 {
		opts.AggregateTTL = time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = sources.DefaultTimeout + 2*time.Second
	}
	return &Service{
		adapters: adapters,
		tickers:  tickers,
		store:    store,
		opts:     opts,
		aggCache: cache.New[[]models.Record](opts.AggregateTTL),
	}
}

// SourceError reports one adapter's failure within a fan-out batch.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

type fetchOutcome struct {
	name    string
	records []models.Record
	err     error
}

// fanOut invokes every adapter concurrently and waits for all of them to
// settle, success or failure. Failed adapters contribute zero records and a
// SourceError; the batch never fails as a whole.
func (s *Service) fanOut(ctx context.Context, q sources.Query) ([]models.Record, []SourceError) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	outcomes := make([]fetchOutcome, len(s.adapters))
	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()
			records, err := adapter.Fetch(ctx, q)
			outcomes[i] = fetchOutcome{name: adapter.Name(), records: records, err: err}
		}(i, adapter)
	}
	wg.Wait()

	// Union with ID-level dedup: a later fetch of the same namespaced ID
	// replaces the earlier value wholesale, never merges.
	byID := make(map[string]int)
	var merged []models.Record
	var errs []SourceError
	for _, outcome := range outcomes {
		if outcome.err != nil {
			errs = append(errs, SourceError{Source: outcome.name, Err: outcome.err})
			continue
		}
		for _, record := range outcome.records {
			if idx, seen := byID[record.ID]; seen {
				merged[idx] = record
				continue
			}
			byID[record.ID] = len(merged)
			merged = append(merged, record)
		}
	}
	return merged, errs
}

// Aggregate returns the combined, filtered, publish-time-ordered record view
// for the given filter. Identical filters within the aggregate TTL are
// served from cache without any fan-out. Degraded upstreams shrink the
// result; they never turn it into an error.
func (s *Service) Aggregate(ctx context.Context, f models.Filter) []models.Record {
	sig := f.Signature()
	if records, ok := s.aggCache.Get(sig); ok {
		return cloneRecords(records)
	}

	records, errs := s.fanOut(ctx, sources.Query{Limit: s.opts.FetchLimit})
	for _, err := range errs {
		logger.Warn("aggregate: %v", err)
	}
	if len(errs) == len(s.adapters) && len(s.adapters) > 0 {
		logger.Error("aggregate: all %d sources failed", len(s.adapters))
	}

	if s.store != nil && len(records) > 0 {
		if err := s.store.UpsertRecords(ctx, records); err != nil {
			logger.Warn("aggregate: persisting %d records: %v", len(records), err)
		}
	}

	filtered := ApplyFilter(records, f, s.opts.DefaultLimit)
	s.aggCache.Set(sig, filtered)
	return cloneRecords(filtered)
}

// cloneRecords gives each caller its own backing array, so mutating a
// returned element can never edit the cached view.
func cloneRecords(records []models.Record) []models.Record {
	out := make([]models.Record, len(records))
	copy(out, records)
	return out
}

// HighPriority returns the most recent high-importance records.
func (s *Service) HighPriority(ctx context.Context, limit int) []models.Record {
	return s.Aggregate(ctx, models.Filter{
		Importance: models.ImportanceHigh,
		Limit:      limit,
	})
}

// BySymbol returns the most recent records mentioning one symbol.
func (s *Service) BySymbol(ctx context.Context, symbol string, limit int) []models.Record {
	return s.Aggregate(ctx, models.Filter{
		Symbols: []string{symbol},
		Limit:   limit,
	})
}

// AggregatedPrice computes the cross-exchange price view for a symbol from
// whichever ticker sources currently have it. Returns nil when no exchange
// quotes the symbol — a missing quote is expected state, not an error.
func (s *Service) AggregatedPrice(ctx context.Context, symbol string) *models.AggregatedPrice {
	symbol = sources.NormalizeSymbol(symbol)
	quotes := s.collectQuotes(ctx, symbol)
	if len(quotes) == 0 {
		return nil
	}

	minP, maxP, sum := quotes[0].Price, quotes[0].Price, 0.0
	for _, q := range quotes {
		if q.Price < minP {
			minP = q.Price
		}
		if q.Price > maxP {
			maxP = q.Price
		}
		sum += q.Price
	}
	spread := 0.0
	if minP > 0 {
		spread = (maxP - minP) / minP * 100
	}

	return &models.AggregatedPrice{
		Symbol:        symbol,
		Average:       sum / float64(len(quotes)),
		Min:           minP,
		Max:           maxP,
		SpreadPercent: spread,
		ExchangeCount: len(quotes),
		Quotes:        quotes,
		UpdatedAt:     time.Now(),
	}
}

// collectQuotes fans out to all ticker adapters, settle-all, and picks the
// requested symbol from each exchange that has it.
func (s *Service) collectQuotes(ctx context.Context, symbol string) []models.ExchangeQuote {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	results := make([][]models.Ticker, len(s.tickers))
	var wg sync.WaitGroup
	for i, adapter := range s.tickers {
		wg.Add(1)
		go func(i int, adapter sources.TickerAdapter) {
			defer wg.Done()
			tickers, err := adapter.FetchTickers(ctx)
			if err != nil {
				logger.Warn("tickers: %v", SourceError{Source: adapter.Exchange(), Err: err})
				return
			}
			results[i] = tickers
		}(i, adapter)
	}
	wg.Wait()

	var quotes []models.ExchangeQuote
	for _, tickers := range results {
		for _, t := range tickers {
			if t.Symbol == symbol {
				quotes = append(quotes, models.ExchangeQuote{
					Exchange:  t.Exchange,
					Price:     t.Price,
					Volume:    t.Volume,
					Timestamp: t.Timestamp,
				})
				break
			}
		}
	}
	return quotes
}

// TopGainers returns the tickers with the largest 24h gain across all
// exchanges, one entry per symbol (the exchange reporting the higher gain
// wins).
func (s *Service) TopGainers(ctx context.Context, limit int) []models.Ticker {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	results := make([][]models.Ticker, len(s.tickers))
	var wg sync.WaitGroup
	for i, adapter := range s.tickers {
		wg.Add(1)
		go func(i int, adapter sources.TickerAdapter) {
			defer wg.Done()
			tickers, err := adapter.FetchTickers(ctx)
			if err != nil {
				logger.Warn("top gainers: %v", SourceError{Source: adapter.Exchange(), Err: err})
				return
			}
			results[i] = tickers
		}(i, adapter)
	}
	wg.Wait()

	best := make(map[string]models.Ticker)
	for _, tickers := range results {
		for _, t := range tickers {
			if prev, ok := best[t.Symbol]; !ok || t.PriceChangePercent > prev.PriceChangePercent {
				best[t.Symbol] = t
			}
		}
	}

	merged := make([]models.Ticker, 0, len(best))
	for _, t := range best {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].PriceChangePercent != merged[j].PriceChangePercent {
			return merged[i].PriceChangePercent > merged[j].PriceChangePercent
		}
		return merged[i].Symbol < merged[j].Symbol
	})

	if limit > len(merged) {
		limit = len(merged)
	}
	return merged[:limit]
}

// CountByCategory returns persisted record counts grouped by category.
func (s *Service) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	if s.store == nil {
		return map[models.Category]int{}, nil
	}
	return s.store.CountByCategory(ctx)
}

// ClearCache drops the aggregate cache, forcing the next request of every
// filter to re-fan-out. Administrative hook for "refresh now".
func (s *Service) ClearCache() {
	s.aggCache.Clear()
}

// SweepCache evicts expired aggregate entries; intended to run on a timer.
func (s *Service) SweepCache() int {
	return s.aggCache.Sweep()
}
