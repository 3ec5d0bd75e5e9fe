package app

import (
	"log/slog"
	"time"

	"aigotrade/internal/infra"
	"aigotrade/internal/infra/marketfeed"
	"aigotrade/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	QuoteCache *marketfeed.QuoteCache
	Quotes     *marketfeed.Client
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, ledger,
// quote feed plumbing).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping trading engine...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Ledger Store
	store, err := storage.NewStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Ledger store initialized", slog.String("path", cfg.Database.Path))

	// 4. Quote cache + REST client
	cacheTTL := 24 * time.Hour
	if cfg.Market.CacheTTLMin > 0 {
		cacheTTL = time.Duration(cfg.Market.CacheTTLMin) * time.Minute
	}
	cache, err := marketfeed.NewQuoteCache(cacheTTL)
	if err != nil {
		return err
	}
	b.QuoteCache = cache

	b.Quotes = marketfeed.NewClient(
		cfg.Market.RestURL,
		time.Duration(cfg.Market.RequestTimeoutSec)*time.Second,
		time.Duration(cfg.Market.FreshWindowSec)*time.Second,
		cache,
	)
	slog.Info("✅ Quote provider ready", slog.String("url", cfg.Market.RestURL))

	return nil
}
