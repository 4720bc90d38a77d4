package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
)

// Config represents the gateway configuration.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	AI         AIConfig
	Cache      CacheConfig
	OpenRouter OpenRouterConfig
	Search     SearchConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string `env:"SERVER_HOST"          envDefault:"0.0.0.0"`
	Port         int    `env:"SERVER_PORT"          envDefault:"5732"`
	ReadTimeout  int    `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int    `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"3600"`
}

// AIConfig contains local generation defaults applied when a request
// leaves the corresponding fields unset.
type AIConfig struct {
	ModelName     string  `env:"MODEL_NAME"     envDefault:"TinyLlama/TinyLlama-1.1B-Chat-v1.0"`
	Temperature   float64 `env:"TEMPERATURE"    envDefault:"0.7"`
	MaxTokens     int     `env:"MAX_TOKENS"     envDefault:"2048"`
	ContextLength int     `env:"CONTEXT_LENGTH" envDefault:"2048"`
}

// CacheConfig contains the layered cache settings. An empty RedisURL or
// SQLitePath disables that tier entirely.
type CacheConfig struct {
	RedisURL           string  `env:"REDIS_URL"             envDefault:""`
	RedisTTLSeconds    int     `env:"REDIS_TTL_SECONDS"     envDefault:"86400"`
	SQLitePath         string  `env:"SQLITE_PATH"           envDefault:""`
	SQLiteTTLDays      int     `env:"SQLITE_TTL_DAYS"       envDefault:"30"`
	SQLiteMaxSizeBytes int64   `env:"SQLITE_MAX_SIZE_BYTES" envDefault:"10737418240"`
	MemoryEntries      int     `env:"MEMORY_CACHE_ENTRIES"  envDefault:"512"`
	MemoryTTLSeconds   int     `env:"MEMORY_TTL_SECONDS"    envDefault:"3600"`
	CacheProbability   float64 `env:"CACHE_PROBABILITY"     envDefault:"0.3"`

	// Reserved for the semantic-similarity cache extension.
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.92"`
	MaxSimilarResults   int     `env:"MAX_SIMILAR_RESULTS"  envDefault:"3"`
}

// OpenRouterConfig contains cloud generation settings. An empty APIKey
// disables the cloud path and High-complexity requests downgrade to
// search enrichment.
type OpenRouterConfig struct {
	APIKey       string `env:"OPENROUTER_API_KEY"       envDefault:""`
	BaseURL      string `env:"OPENROUTER_BASE_URL"      envDefault:"https://openrouter.ai/api/v1"`
	DefaultModel string `env:"OPENROUTER_DEFAULT_MODEL" envDefault:"openrouter/auto"`
	Timeout      int    `env:"OPENROUTER_TIMEOUT"       envDefault:"60"`
	MaxRetries   int    `env:"OPENROUTER_MAX_RETRIES"   envDefault:"3"`
}

// SearchConfig contains the search collaborator endpoint. Empty means
// search is disabled and always returns no results.
type SearchConfig struct {
	BaseURL string `env:"SEARCH_BASE_URL" envDefault:""`
	Timeout int    `env:"SEARCH_TIMEOUT"  envDefault:"10"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*AIConfig
	*CacheConfig
	*OpenRouterConfig
	*SearchConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.AI,
		&cfg.Cache,
		&cfg.OpenRouter,
		&cfg.Search,
	}
}
