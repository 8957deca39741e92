package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feed-pulse/internal/aggregator"
	"github.com/feed-pulse/internal/alerts"
	"github.com/feed-pulse/internal/config"
	"github.com/feed-pulse/internal/logger"
	"github.com/feed-pulse/internal/models"
	"github.com/feed-pulse/internal/sources"
	"github.com/feed-pulse/internal/storage"
	"github.com/feed-pulse/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Build source adapters from the enabled providers
	adapters, tickers := buildAdapters(cfg)
	logger.Info("Sources enabled: %d announcement adapters, %d ticker adapters", len(adapters), len(tickers))

	// Initialize aggregation service
	svc := aggregator.New(adapters, tickers, store, aggregator.Options{
		DefaultLimit: cfg.Aggregator.DefaultLimit,
		FetchLimit:   cfg.Aggregator.FetchLimit,
		AggregateTTL: cfg.Aggregator.AggregateTTL,
		FetchTimeout: cfg.Aggregator.FetchTimeout,
	})

	// Initialize Telegram client
	var notifier alerts.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		notifier = telegramClient
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Initialize alert evaluator
	evaluator := alerts.NewEvaluator(store, svc, notifier, cfg.Alerts.Interval)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Start the alert evaluation loop
	go evaluator.Run(ctx)

	// Warm the aggregate view once on startup so the first caller does not
	// pay the full fan-out latency.
	warm := svc.Aggregate(ctx, models.Filter{})
	logger.Info("Startup aggregation: %d records in the default view", len(warm))
	if counts, err := svc.CountByCategory(ctx); err == nil && len(counts) > 0 {
		logger.Debug("Stored records by category: %v", counts)
	}

	// Periodically evict expired aggregate-cache entries
	sweep := time.NewTicker(cfg.Aggregator.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-sweep.C:
			if evicted := svc.SweepCache(); evicted > 0 {
				logger.Debug("Cache sweep evicted %d aggregate entries", evicted)
			}
		}
	}
}

// buildAdapters assembles the announcement and ticker adapters for every
// provider the config enables.
func buildAdapters(cfg *config.Config) ([]sources.Adapter, []sources.TickerAdapter) {
	var adapters []sources.Adapter
	var tickers []sources.TickerAdapter

	announcementTTL := cfg.Sources.AnnouncementTTL
	tickerTTL := cfg.Sources.TickerTTL

	add := func(pc sources.ProviderConfig, tc sources.TickerConfig) {
		pc.Timeout = cfg.Sources.Timeout
		tc.Timeout = cfg.Sources.Timeout
		adapters = append(adapters, sources.NewRESTAdapter(pc))
		tickers = append(tickers, sources.NewRESTTickerAdapter(tc))
	}

	if cfg.Sources.Binance.Enabled {
		add(
			sources.BinanceAnnouncements(cfg.Sources.Binance.BaseURL, announcementTTL),
			sources.BinanceTickers("", tickerTTL),
		)
	}
	if cfg.Sources.OKX.Enabled {
		add(
			sources.OKXAnnouncements(cfg.Sources.OKX.BaseURL, announcementTTL),
			sources.OKXTickers("", tickerTTL),
		)
	}
	if cfg.Sources.Bybit.Enabled {
		add(
			sources.BybitAnnouncements(cfg.Sources.Bybit.BaseURL, announcementTTL),
			sources.BybitTickers("", tickerTTL),
		)
	}

	if cfg.Sources.OnChain.Enabled {
		adapters = append(adapters, sources.NewOnChainAdapter(sources.OnChainConfig{
			Name:         "onchain-transfers",
			URL:          cfg.Sources.OnChain.BaseURL,
			APIKey:       cfg.Sources.OnChain.APIKey,
			Timeout:      cfg.Sources.Timeout,
			HotThreshold: cfg.Sources.OnChain.HotThresholdUSD,
		}))
	}

	return adapters, tickers
}
