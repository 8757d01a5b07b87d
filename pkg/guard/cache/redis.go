package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// RedisStore is a networked decision cache backed by Redis, for deployments
// where multiple proxy instances should share scan verdicts.
//
// Verdicts are stored as JSON with a per-key TTL, so expiry is enforced by
// Redis itself. All backend failures degrade to cache misses or no-ops: a
// down Redis makes the proxy slower, never broken.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to Redis at redisURL (redis://host:port/db) and
// verifies the connection with a short ping. A failed ping is an error at
// construction time; runtime failures are swallowed.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Get fetches and decodes the verdict for key. Network errors and corrupt
// entries both count as misses.
func (s *RedisStore) Get(ctx context.Context, key string) (*guard.Verdict, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("redis cache get failed, treating as miss",
				"key", key,
				"error", err,
			)
		}
		s.misses.Add(1)
		return nil, false
	}

	var verdict guard.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		slog.Warn("corrupt cache entry, treating as miss",
			"key", key,
			"error", err,
		)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return &verdict, true
}

// Set stores the verdict under key with the configured TTL. Failures are
// logged and dropped; the cache is never a correctness dependency.
func (s *RedisStore) Set(ctx context.Context, key string, verdict *guard.Verdict) {
	if verdict == nil {
		return
	}

	data, err := json.Marshal(verdict)
	if err != nil {
		slog.Warn("failed to encode verdict for cache", "error", err)
		return
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		slog.Debug("redis cache set failed, skipping",
			"key", key,
			"error", err,
		)
	}
}

// Stats returns hit/miss counters. Entry count and evictions are owned by
// the Redis server and reported as zero here.
func (s *RedisStore) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

// Close closes the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
