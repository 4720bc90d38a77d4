package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/cache"
	"github.com/davidbz/ember/internal/cache/memory"
)

// fakeRemote is an in-memory cache.Remote that counts accesses and can be
// forced to fail.
type fakeRemote struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
	sets   int
	fail   bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{values: make(map[string]string)}
}

func (f *fakeRemote) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail {
		return "", errors.New("connection refused")
	}
	value, ok := f.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return value, nil
}

func (f *fakeRemote) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.fail {
		return errors.New("connection refused")
	}
	f.values[key] = value
	return nil
}

func (f *fakeRemote) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeRemote) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// fakeDurable is an in-memory cache.Durable that counts accesses.
type fakeDurable struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
	sets   int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{values: make(map[string]string)}
}

func (f *fakeDurable) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	value, ok := f.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return value, nil
}

func (f *fakeDurable) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.values[key] = value
	return nil
}

func (f *fakeDurable) CleanupExpired(context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeDurable) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeDurable) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func payload(t *testing.T, text string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"response": text})
	require.NoError(t, err)
	return raw
}

func TestTieredGet(t *testing.T) {
	ctx := context.Background()

	t.Run("should miss on an empty cache", func(t *testing.T) {
		tiered := cache.NewTiered(memory.New(8, time.Minute))

		_, _, ok := tiered.Get(ctx, "absent")

		require.False(t, ok)
		require.Equal(t, int64(1), tiered.Stats().TotalRequests)
	})

	t.Run("should serve from memory first", func(t *testing.T) {
		remote := newFakeRemote()
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithRemote(remote, time.Minute))
		tiered.Set(ctx, "k", payload(t, "hi"))

		value, source, ok := tiered.Get(ctx, "k")

		require.True(t, ok)
		require.Equal(t, cache.SourceMemory, source)
		require.JSONEq(t, `{"response":"hi"}`, string(value))
	})

	t.Run("should promote a redis hit into memory", func(t *testing.T) {
		remote := newFakeRemote()
		remote.values["k"] = `{"response":"hi"}`
		mem := memory.New(8, time.Minute)
		tiered := cache.NewTiered(mem, cache.WithRemote(remote, time.Minute))

		_, source, ok := tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceRedis, source)

		// Promoted: second read is a memory hit.
		_, source, ok = tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceMemory, source)
		require.Equal(t, 1, remote.getCount())
	})

	t.Run("should promote a sqlite hit into memory without re-reading sqlite", func(t *testing.T) {
		durable := newFakeDurable()
		durable.values["k"] = `{"response":"hi"}`
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithDurable(durable))

		_, source, ok := tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceSqlite, source)

		_, source, ok = tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceMemory, source)
		require.Equal(t, 1, durable.getCount())
	})

	t.Run("should tolerate a failing redis tier", func(t *testing.T) {
		remote := newFakeRemote()
		remote.fail = true
		durable := newFakeDurable()
		durable.values["k"] = `{"response":"hi"}`
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithRemote(remote, time.Minute),
			cache.WithDurable(durable))

		value, source, ok := tiered.Get(ctx, "k")

		// Same outcome as memory + sqlite alone.
		require.True(t, ok)
		require.Equal(t, cache.SourceSqlite, source)
		require.JSONEq(t, `{"response":"hi"}`, string(value))
	})

	t.Run("should count one total request per get", func(t *testing.T) {
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithRemote(newFakeRemote(), time.Minute),
			cache.WithDurable(newFakeDurable()))

		tiered.Get(ctx, "a")
		tiered.Get(ctx, "b")
		tiered.Get(ctx, "c")

		stats := tiered.Stats()
		require.Equal(t, int64(3), stats.TotalRequests)
		require.Zero(t, stats.MemoryHits)
		require.Zero(t, stats.RedisHits)
		require.Zero(t, stats.SqliteHits)
	})

	t.Run("should record the hit against the serving tier", func(t *testing.T) {
		durable := newFakeDurable()
		durable.values["k"] = `{"response":"hi"}`
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithDurable(durable))

		tiered.Get(ctx, "k") // sqlite hit
		tiered.Get(ctx, "k") // memory hit after promotion

		stats := tiered.Stats()
		require.Equal(t, int64(2), stats.TotalRequests)
		require.Equal(t, int64(1), stats.SqliteHits)
		require.Equal(t, int64(1), stats.MemoryHits)
	})
}

func TestTieredSet(t *testing.T) {
	ctx := context.Background()

	t.Run("should write through to all configured tiers", func(t *testing.T) {
		remote := newFakeRemote()
		durable := newFakeDurable()
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithRemote(remote, time.Minute),
			cache.WithDurable(durable))

		tiered.Set(ctx, "k", payload(t, "hi"))

		_, source, ok := tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceMemory, source)

		// Remote and durable writes are asynchronous.
		require.Eventually(t, func() bool {
			return remote.setCount() == 1 && durable.setCount() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("should not fail the caller when a tier write fails", func(t *testing.T) {
		remote := newFakeRemote()
		remote.fail = true
		tiered := cache.NewTiered(memory.New(8, time.Minute),
			cache.WithRemote(remote, time.Minute))

		tiered.Set(ctx, "k", payload(t, "hi"))

		_, source, ok := tiered.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, cache.SourceMemory, source)
	})
}
