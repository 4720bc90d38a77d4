// Package cache implements the layered response cache: a deterministic
// request fingerprinter, a memory/redis/sqlite tier orchestrator with
// read-through promotion, and process-wide hit statistics.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keySeparator joins fingerprint fields before hashing. Without it the
// tuples ("ab","c") and ("a","bc") would hash identically.
const keySeparator = "\x1f"

// Key derives a cache key from the semantically relevant request fields.
// The same ordered tuple always produces the same key, across processes.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}
