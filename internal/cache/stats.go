package cache

import "sync/atomic"

// Stats tracks per-process cache counters. Counters only grow; they reset
// on restart and are never persisted.
type Stats struct {
	totalRequests atomic.Int64
	memoryHits    atomic.Int64
	redisHits     atomic.Int64
	sqliteHits    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalRequests int64 `json:"total_requests"`
	MemoryHits    int64 `json:"memory_hits"`
	RedisHits     int64 `json:"redis_hits"`
	SqliteHits    int64 `json:"sqlite_hits"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalRequests: s.totalRequests.Load(),
		MemoryHits:    s.memoryHits.Load(),
		RedisHits:     s.redisHits.Load(),
		SqliteHits:    s.sqliteHits.Load(),
	}
}
