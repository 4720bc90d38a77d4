package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when the environment is empty", func(t *testing.T) {
		cfg := config.Load()

		require.Equal(t, "0.0.0.0", cfg.Server.Host)
		require.Equal(t, 5732, cfg.Server.Port)
		require.Equal(t, "TinyLlama/TinyLlama-1.1B-Chat-v1.0", cfg.AI.ModelName)
		require.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
		require.Equal(t, 2048, cfg.AI.MaxTokens)
		require.Empty(t, cfg.Cache.RedisURL)
		require.Equal(t, 86400, cfg.Cache.RedisTTLSeconds)
		require.Empty(t, cfg.Cache.SQLitePath)
		require.Equal(t, 30, cfg.Cache.SQLiteTTLDays)
		require.Equal(t, int64(10737418240), cfg.Cache.SQLiteMaxSizeBytes)
		require.Equal(t, 512, cfg.Cache.MemoryEntries)
		require.InDelta(t, 0.3, cfg.Cache.CacheProbability, 1e-9)
		require.Empty(t, cfg.OpenRouter.APIKey)
		require.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
		require.Equal(t, "openrouter/auto", cfg.OpenRouter.DefaultModel)
		require.Empty(t, cfg.Search.BaseURL)
		require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("should honor environment overrides", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "8080")
		t.Setenv("MODEL_NAME", "phi-2")
		t.Setenv("TEMPERATURE", "0.2")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("CACHE_PROBABILITY", "1.0")
		t.Setenv("OPENROUTER_API_KEY", "sk-test")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

		cfg := config.Load()

		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, "phi-2", cfg.AI.ModelName)
		require.InDelta(t, 0.2, cfg.AI.Temperature, 1e-9)
		require.Equal(t, "redis://localhost:6379", cfg.Cache.RedisURL)
		require.InDelta(t, 1.0, cfg.Cache.CacheProbability, 1e-9)
		require.Equal(t, "sk-test", cfg.OpenRouter.APIKey)
		require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	})
}

func TestParseDependenciesConfig(t *testing.T) {
	t.Run("should expose pointers into the parsed config", func(t *testing.T) {
		cfg := config.Load()

		deps := config.ParseDependenciesConfig(cfg)

		require.Same(t, &cfg.Server, deps.ServerConfig)
		require.Same(t, &cfg.AI, deps.AIConfig)
		require.Same(t, &cfg.Cache, deps.CacheConfig)
		require.Same(t, &cfg.OpenRouter, deps.OpenRouterConfig)
		require.Same(t, &cfg.Search, deps.SearchConfig)
	})
}
