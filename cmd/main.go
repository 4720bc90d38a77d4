package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/ember/internal/cache"
	"github.com/davidbz/ember/internal/cache/memory"
	redistier "github.com/davidbz/ember/internal/cache/redis"
	sqlitetier "github.com/davidbz/ember/internal/cache/sqlite"
	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	httpapi "github.com/davidbz/ember/internal/http"
	"github.com/davidbz/ember/internal/observability"
	"github.com/davidbz/ember/internal/provider/echo"
	"github.com/davidbz/ember/internal/provider/local"
	"github.com/davidbz/ember/internal/provider/openrouter"
	"github.com/davidbz/ember/internal/routing"
	"github.com/davidbz/ember/internal/search"
	"github.com/davidbz/ember/internal/stream"
)

const cleanupInterval = time.Hour

func main() {
	container := buildContainer()

	// Force logger initialization before anything else logs.
	if err := container.Invoke(func(_ *zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Periodic purge of expired durable-tier rows.
	if err := container.Invoke(startCleanupLoop); err != nil {
		log.Fatalf("Failed to start cache cleanup: %v", err)
	}

	err := container.Invoke(func(server *httpapi.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Local inference: the echo engine stands in for a real model; the
	// exclusive handle is what the router generates through.
	if err := container.Provide(func() domain.InferenceEngine {
		return echo.NewEngine()
	}); err != nil {
		log.Fatalf("Failed to provide inference engine: %v", err)
	}
	if err := container.Provide(local.NewModel); err != nil {
		log.Fatalf("Failed to provide local model: %v", err)
	}
	if err := container.Provide(func(model *local.Model) domain.Generator {
		return model
	}); err != nil {
		log.Fatalf("Failed to provide generator: %v", err)
	}

	// Search collaborator
	if err := container.Provide(func(cfg *config.SearchConfig) domain.Searcher {
		return search.NewClient(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide search client: %v", err)
	}

	// Cloud generation, optional: without an API key the router downgrades
	// High-complexity requests to search enrichment.
	if err := container.Provide(func(cfg *config.OpenRouterConfig, logger *zap.Logger) domain.CloudGenerator {
		if cfg.APIKey == "" {
			logger.Info("no OpenRouter API key configured, cloud generation disabled")
			return nil
		}
		provider, err := openrouter.NewProvider(cfg)
		if err != nil {
			logger.Warn("failed to configure OpenRouter, cloud generation disabled", zap.Error(err))
			return nil
		}
		return provider
	}); err != nil {
		log.Fatalf("Failed to provide cloud provider: %v", err)
	}

	// Layered cache: memory always, redis and sqlite when configured and
	// reachable. A tier that fails to initialize is skipped, never fatal.
	if err := container.Provide(newTieredCache); err != nil {
		log.Fatalf("Failed to provide cache: %v", err)
	}

	// Routing + streaming. An unconfigured cloud provider surfaces here as
	// nil; WithCloud ignores it and the router keeps its disabled variant.
	if err := container.Provide(func(
		local domain.Generator,
		searcher domain.Searcher,
		cloud domain.CloudGenerator,
		ai *config.AIConfig,
	) *routing.Router {
		return routing.NewRouter(local, searcher, ai, routing.WithCloud(cloud))
	}); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}
	if err := container.Provide(stream.NewEmitter); err != nil {
		log.Fatalf("Failed to provide stream emitter: %v", err)
	}

	// HTTP layer
	if err := container.Provide(httpapi.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpapi.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func newTieredCache(cfg *config.CacheConfig, logger *zap.Logger) *cache.Tiered {
	mem := memory.New(cfg.MemoryEntries, time.Duration(cfg.MemoryTTLSeconds)*time.Second)

	var opts []cache.Option

	if cfg.RedisURL != "" {
		remote, err := redistier.New(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis tier unavailable, running without it", zap.Error(err))
		} else {
			opts = append(opts, cache.WithRemote(remote, time.Duration(cfg.RedisTTLSeconds)*time.Second))
		}
	}

	if cfg.SQLitePath != "" {
		durable, err := sqlitetier.New(cfg.SQLitePath, cfg.SQLiteTTLDays, cfg.SQLiteMaxSizeBytes)
		if err != nil {
			logger.Warn("sqlite tier unavailable, running without it", zap.Error(err))
		} else {
			opts = append(opts, cache.WithDurable(durable))
		}
	}

	return cache.NewTiered(mem, opts...)
}

func startCleanupLoop(tiered *cache.Tiered, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			removed, err := tiered.Cleanup(context.Background())
			if err != nil {
				logger.Warn("cache cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("expired cache entries removed", zap.Int64("count", removed))
			}
		}
	}()
}
