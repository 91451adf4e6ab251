package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/gamevault-api/internal/catalog"
	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/config"
	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/handlers"
	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/logger"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/dimitrije/gamevault-api/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	sweepInterval   = time.Minute
	cleanupInterval = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changes := hub.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		changes.Run(ctx)
	}()

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)

	var (
		collectionStore store.Store
		apiKeyService   *services.APIKeyService
		apiKeys         handlers.APIKeyManager
	)
	if cfg.UsesMemoryStore() {
		logg.Warn("using in-memory collection store; data is lost on restart and api keys are disabled")
		collectionStore = store.NewMemory(changes)
	} else {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logg.Fatal("failed to run migrations", zap.Error(err))
		}

		collectionStore = store.NewPostgres(db, changes)
		apiKeyService = services.NewAPIKeyService(db)
		apiKeys = apiKeyService
	}

	client := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		APIKey:     cfg.Catalog.APIKey,
		Timeout:    cfg.Catalog.Timeout,
		MaxRetries: cfg.Catalog.MaxRetries,
		RetryDelay: cfg.Catalog.RetryDelay,
	}, logg)
	if cfg.Catalog.APIKey == "" {
		logg.Warn("RAWG_API_KEY is not set; catalog lookups will fail")
	}

	var lookup collections.Catalog = client
	if cfg.CacheEnabled() {
		cache := catalog.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = cache.Close() }()
		if err := cache.Ping(ctx); err != nil {
			logg.Warn("redis unavailable; catalog cache will fall through", zap.Error(err))
		}
		lookup = catalog.Cached(client, cache, cfg.Catalog.CacheTTL, logg)
	}

	registry := collections.NewRegistry(collectionStore, lookup, cfg.SessionIdleTimeout, collections.Options{
		Concurrency:           cfg.Catalog.Concurrency,
		DefaultCollectionName: cfg.DefaultCollectionName,
		Reporter:              collections.NewLogReporter(logg),
		Logger:                logg,
	})
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		registry.Run(ctx, sweepInterval)
	}()

	if apiKeyService != nil {
		go cleanupAPIKeys(ctx, apiKeyService, logg)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Production:   cfg.IsProduction(),
		Tokens:       jwtService,
		APIKeys:      apiKeys,
		Registry:     registry,
		Catalog:      client,
		CatalogState: func() string { return client.BreakerState().String() },
		Logger:       logg,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go serve(server, "api", logg)
	go serve(metricsServer, "metrics", logg)

	<-ctx.Done()
	logg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// The registry stops with ctx, which ends open event streams.
	<-registryDone
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("metrics server shutdown", zap.Error(err))
	}
	<-hubDone
}

func serve(server *http.Server, name string, logg *zap.Logger) {
	logg.Info("server starting", zap.String("server", name), zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Fatal("server failed", zap.String("server", name), zap.Error(err))
	}
}

func cleanupAPIKeys(ctx context.Context, apiKeys *services.APIKeyService, logg *zap.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := apiKeys.CleanupExpired(ctx)
			if err != nil {
				logg.Warn("api key cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logg.Info("removed stale api keys", zap.Int64("count", n))
			}
		}
	}
}
