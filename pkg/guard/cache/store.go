package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// Store is the pluggable backend for the guard decision cache.
//
// Implementations must be safe for concurrent use. They must never surface
// backend failures to callers: a failed Get is a miss, a failed Set is a
// no-op. Verdicts returned by Get are shared; callers must not mutate them.
type Store interface {
	// Get returns the cached verdict for key, or (nil, false) on a miss.
	Get(ctx context.Context, key string) (*guard.Verdict, bool)

	// Set stores a verdict under key with the backend's configured TTL,
	// replacing any prior entry.
	Set(ctx context.Context, key string, verdict *guard.Verdict)

	// Stats returns hit/miss/eviction counters for diagnostics.
	Stats() Stats

	// Close releases backend resources (sweep goroutine, connections).
	Close() error
}

// Stats holds cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Config configures a cache backend.
type Config struct {
	// Backend selects the implementation: "memory" or "redis".
	Backend string

	// TTL is the time-to-live for entries. Zero disables expiry.
	TTL time.Duration

	// MaxEntries bounds the memory backend (LRU eviction once full).
	// Ignored by the Redis backend.
	MaxEntries int

	// RedisURL is the connection URL for the Redis backend
	// (redis://host:port/db).
	RedisURL string
}

// New creates the Store selected by cfg.Backend.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want \"memory\" or \"redis\")", cfg.Backend)
	}
}
