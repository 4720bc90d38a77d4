// Package sqlite implements the durable cache tier: an on-disk table with
// explicit expiry bookkeeping and coarse size-based eviction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidbz/ember/internal/cache"
	"github.com/davidbz/ember/internal/observability"
)

// evictionBatch is how many oldest rows are dropped when the database
// exceeds its size budget. Persistent-tier pressure is rare, so eviction
// is FIFO by age rather than LRU.
const evictionBatch = 500

const schema = `
CREATE TABLE IF NOT EXISTS ai_cache (
	cache_key     TEXT PRIMARY KEY,
	response_json TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	hits          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ai_cache_expires ON ai_cache(expires_at);
`

// Record is one durable cache row.
type Record struct {
	Key       string
	ValueJSON string
	CreatedAt time.Time
	ExpiresAt time.Time
	Hits      int64
}

// Store is the durable tier, implementing cache.Durable over a single
// SQLite file.
type Store struct {
	db           *sql.DB
	path         string
	ttl          time.Duration
	maxSizeBytes int64
}

// New opens (creating if necessary) the database at path. Entries written
// through Set expire ttlDays after the write; after every write the file
// is kept under maxSizeBytes (0 disables the size check).
func New(path string, ttlDays int, maxSizeBytes int64) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite cache directory %s: %w", dir, err)
		}
	}

	// Hit updates race from concurrent readers; a busy timeout on every
	// pooled connection lets them serialize instead of failing.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite cache: %w", err)
	}

	return &Store{
		db:           db,
		path:         path,
		ttl:          time.Duration(ttlDays) * 24 * time.Hour,
		maxSizeBytes: maxSizeBytes,
	}, nil
}

// Get returns the cached JSON for key if the row has not expired, and
// increments its hit counter as a side effect.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	record, err := s.GetRecord(ctx, key)
	if err != nil {
		return "", err
	}
	return record.ValueJSON, nil
}

// GetRecord returns the full unexpired row for key, incrementing its hit
// counter in the same statement so the reported count is exactly the
// stored count. Absent or expired rows yield cache.ErrCacheMiss.
func (s *Store) GetRecord(ctx context.Context, key string) (*Record, error) {
	now := time.Now().Unix()

	var record Record
	var createdAt, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE ai_cache SET hits = hits + 1
		 WHERE cache_key = ? AND expires_at > ?
		 RETURNING cache_key, response_json, created_at, expires_at, hits`,
		key, now,
	).Scan(&record.Key, &record.ValueJSON, &createdAt, &expiresAt, &record.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get failed: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	record.ExpiresAt = time.Unix(expiresAt, 0)
	return &record, nil
}

// Set upserts value under key with a fresh expiry. A conflicting write
// replaces the value and timestamps but preserves the hit counter.
func (s *Store) Set(ctx context.Context, key, value string) error {
	now := time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_cache (cache_key, response_json, created_at, expires_at, hits)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(cache_key) DO UPDATE SET
			response_json = excluded.response_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, value, now.Unix(), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite set failed: %w", err)
	}

	if err := s.enforceSize(ctx); err != nil {
		observability.FromContext(ctx).Warn("sqlite size enforcement failed",
			observability.Error(err))
	}
	return nil
}

// CleanupExpired deletes every row past expiry and returns the count
// removed. Safe to call opportunistically at any time.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite cleanup failed: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite cleanup failed: %w", err)
	}
	return removed, nil
}

// enforceSize drops the oldest rows and reclaims space whenever the
// database file exceeds the configured byte budget.
func (s *Store) enforceSize(ctx context.Context) error {
	if s.maxSizeBytes <= 0 {
		return nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= s.maxSizeBytes {
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_cache WHERE cache_key IN (
			SELECT cache_key FROM ai_cache ORDER BY created_at ASC LIMIT ?
		)`, evictionBatch,
	); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
