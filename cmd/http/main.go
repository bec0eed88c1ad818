package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsvc/internal/config"
	"feedsvc/internal/parse"
	"feedsvc/internal/pubsub"
	"feedsvc/internal/server"
	"feedsvc/internal/urlstore"
)

func main() {
	// Initialize structured logging
	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(jsonHandler))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the URL cache backend. Without a Valkey host the cache
	// lives in process memory and is lost on restart.
	var cache urlstore.Cache
	if config.ValkeyHost != "" {
		redisCache, err := urlstore.NewRedisCache(ctx, config.ValkeyHost, config.ValkeyPort)
		if err != nil {
			slog.Error("Failed to connect to Valkey", "host", config.ValkeyHost, "error", err)
			os.Exit(1)
		}
		cache = redisCache
		slog.Info("Using Valkey URL cache", "host", config.ValkeyHost, "port", config.ValkeyPort)
	} else {
		cache = urlstore.NewMemoryCache()
		slog.Info("Using in-memory URL cache")
	}

	fetcher := urlstore.NewFetcher(cache, nil)

	store, err := pubsub.NewStore(config.SubscriptionDB)
	if err != nil {
		slog.Error("Failed to open subscription store", "path", config.SubscriptionDB, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	subscriber := pubsub.NewSubscriber(store, fetcher, config.BaseURL, nil)

	parser := parse.NewService(fetcher, subscriber,
		config.SoundcloudConsumerKey,
		time.Duration(config.CacheTTL)*time.Second,
		config.ResolveFileRedirects)

	// Create HTTP server
	srv := server.NewServer(config.Port, parser, subscriber)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("Feedservice started", "port", config.Port, "base_url", config.BaseURL)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	} else {
		slog.Info("Server exited gracefully")
	}
}
