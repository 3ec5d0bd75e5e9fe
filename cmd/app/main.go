package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aigotrade/internal/app"
	"aigotrade/internal/engine"
	"aigotrade/internal/infra/marketfeed"
	"aigotrade/internal/server"
	"aigotrade/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Optional streaming quote feed keeping the cache warm
	if cfg.Market.WSURL != "" && len(cfg.Market.Symbols) > 0 {
		stream := marketfeed.NewStreamWorker(cfg.Market.WSURL, cfg.Market.Symbols, bootstrap.QuoteCache)
		if err := stream.Connect(ctx); err != nil {
			slog.Error("Failed to start quote stream", slog.Any("error", err))
		}
		defer stream.Disconnect()
		slog.InfoContext(ctx, "✅ Quote stream started", slog.Int("symbols", len(cfg.Market.Symbols)))
	}

	// 5. Engine + read services
	executor := engine.NewExecutor(bootstrap.Storage, bootstrap.Quotes, cfg.Trading.InitialCash)
	portfolio := service.NewPortfolioService(bootstrap.Storage, bootstrap.Quotes)

	// 6. HTTP Boundary
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(executor, portfolio).Router(),
	}
	go func() {
		slog.Info("✅ HTTP server listening", slog.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Trading engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}
}
