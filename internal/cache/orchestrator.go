package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/davidbz/ember/internal/observability"
)

// ErrCacheMiss indicates no cached entry was found in a tier.
var ErrCacheMiss = errors.New("cache miss")

// Source identifies the tier that served a cached value.
type Source string

// Tier identifiers, reported to callers via ChatResponse.CacheSource.
const (
	SourceMemory Source = "memory"
	SourceRedis  Source = "redis"
	SourceSqlite Source = "sqlite"
)

// Local is the in-process tier. Operations are non-blocking and never fail.
type Local interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value json.RawMessage)
}

// Remote is the distributed tier contract. TTL enforcement belongs to the
// backing store. Get returns ErrCacheMiss when the key is absent.
type Remote interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Durable is the persistent tier contract. Get returns ErrCacheMiss for
// absent or expired rows and records the hit as a side effect.
type Durable interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// noRemote and noDurable stand in for unconfigured tiers so that Get/Set
// never branch on nil. An unreachable or missing backend is an ordinary,
// always-tolerated state.
type noRemote struct{}

func (noRemote) Get(context.Context, string) (string, error) { return "", ErrCacheMiss }
func (noRemote) Set(context.Context, string, string, time.Duration) error {
	return nil
}

type noDurable struct{}

func (noDurable) Get(context.Context, string) (string, error)   { return "", ErrCacheMiss }
func (noDurable) Set(context.Context, string, string) error     { return nil }
func (noDurable) CleanupExpired(context.Context) (int64, error) { return 0, nil }

// Tiered composes the three tiers behind one get/set contract with
// read-through promotion into the memory tier.
type Tiered struct {
	local     Local
	remote    Remote
	durable   Durable
	remoteTTL time.Duration
	stats     Stats
}

// Option configures optional tiers on a Tiered cache.
type Option func(*Tiered)

// WithRemote attaches a distributed tier. ttl is passed through on writes.
func WithRemote(remote Remote, ttl time.Duration) Option {
	return func(t *Tiered) {
		if remote != nil {
			t.remote = remote
			t.remoteTTL = ttl
		}
	}
}

// WithDurable attaches a persistent tier.
func WithDurable(durable Durable) Option {
	return func(t *Tiered) {
		if durable != nil {
			t.durable = durable
		}
	}
}

// NewTiered creates the cache orchestrator around a mandatory memory tier.
func NewTiered(local Local, opts ...Option) *Tiered {
	t := &Tiered{
		local:   local,
		remote:  noRemote{},
		durable: noDurable{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stats returns a snapshot of the hit/miss counters.
func (t *Tiered) Stats() StatsSnapshot {
	return t.stats.Snapshot()
}

// Get probes memory, then redis, then sqlite. A hit in a slower tier is
// promoted into the memory tier. Exactly one total_requests increment is
// recorded per call. Tier failures are logged and treated as misses.
func (t *Tiered) Get(ctx context.Context, key string) (json.RawMessage, Source, bool) {
	t.stats.totalRequests.Add(1)
	logger := observability.FromContext(ctx)

	if value, ok := t.local.Get(key); ok {
		t.stats.memoryHits.Add(1)
		return value, SourceMemory, true
	}

	if raw, err := t.remote.Get(ctx, key); err == nil {
		if json.Valid([]byte(raw)) {
			value := json.RawMessage(raw)
			t.stats.redisHits.Add(1)
			t.local.Set(key, value)
			return value, SourceRedis, true
		}
		logger.Warn("discarding malformed redis cache entry",
			observability.String("cache_key", key))
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("redis tier unavailable, continuing",
			observability.Error(err))
	}

	if raw, err := t.durable.Get(ctx, key); err == nil {
		if json.Valid([]byte(raw)) {
			value := json.RawMessage(raw)
			t.stats.sqliteHits.Add(1)
			t.local.Set(key, value)
			return value, SourceSqlite, true
		}
		logger.Warn("discarding malformed sqlite cache entry",
			observability.String("cache_key", key))
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("sqlite tier unavailable, continuing",
			observability.Error(err))
	}

	return nil, "", false
}

// Cleanup removes expired rows from the durable tier, returning the
// count removed. Safe to call opportunistically at any time.
func (t *Tiered) Cleanup(ctx context.Context) (int64, error) {
	return t.durable.CleanupExpired(ctx)
}

// Set writes to the memory tier synchronously and to the remote and
// durable tiers best-effort on their own goroutines. A failure in one
// tier never blocks the caller or the other tiers.
func (t *Tiered) Set(ctx context.Context, key string, value json.RawMessage) {
	t.local.Set(key, value)

	// Detached from the request lifetime: the response is usually flushed
	// before the slower tiers finish writing.
	bg := context.WithoutCancel(ctx)
	payload := string(value)

	go func() {
		if err := t.remote.Set(bg, key, payload, t.remoteTTL); err != nil {
			observability.FromContext(bg).Warn("redis cache write failed",
				observability.Error(err))
		}
	}()

	go func() {
		if err := t.durable.Set(bg, key, payload); err != nil {
			observability.FromContext(bg).Warn("sqlite cache write failed",
				observability.Error(err))
		}
	}()
}
