package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// MemoryStore is a thread-safe in-process decision cache with TTL expiry and
// LRU eviction. When the cache reaches max capacity it evicts the least
// recently accessed entry; expired entries are dropped lazily on Get and by
// a background sweep.
type MemoryStore struct {
	// entries maps cache keys to list elements for O(1) LRU updates
	entries map[string]*list.Element

	// order tracks recency; front is most recently used
	order *list.List

	// ttl is the time-to-live for entries (0 = no expiry)
	ttl time.Duration

	// maxEntries is the capacity bound (0 = unlimited)
	maxEntries int

	// mu protects entries and order
	mu sync.Mutex

	// stopCh signals the sweep goroutine to stop
	stopCh   chan struct{}
	stopOnce sync.Once

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// memoryEntry is a single cached verdict with its expiry deadline.
type memoryEntry struct {
	key       string
	verdict   *guard.Verdict
	expiresAt time.Time
}

// NewMemoryStore creates an in-process decision cache.
// If ttl is 0, entries never expire. If maxEntries is 0, capacity is
// unbounded. The background sweep runs at ttl/2, floored at 10 seconds.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	if ttl > 0 {
		interval := ttl / 2
		if interval < 10*time.Second {
			interval = 10 * time.Second
		}
		go s.sweep(interval)
	}

	return s
}

// Get returns the cached verdict for key, or (nil, false) if absent or
// expired. A hit moves the entry to the front of the LRU order.
func (s *MemoryStore) Get(_ context.Context, key string) (*guard.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if s.ttl > 0 && time.Now().After(entry.expiresAt) {
		// Lazy expiry: drop the stale entry on read.
		s.removeLocked(elem)
		s.misses.Add(1)
		return nil, false
	}

	s.order.MoveToFront(elem)
	s.hits.Add(1)
	return entry.verdict, true
}

// Set stores a verdict under key, replacing any prior entry. If the cache
// is at capacity the least recently used entry is evicted first.
func (s *MemoryStore) Set(_ context.Context, key string, verdict *guard.Verdict) {
	if verdict == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}

	if elem, ok := s.entries[key]; ok {
		// Replace in place, refresh recency and expiry.
		entry := elem.Value.(*memoryEntry)
		entry.verdict = verdict
		entry.expiresAt = expiresAt
		s.order.MoveToFront(elem)
		return
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
			s.evictions.Add(1)
		}
	}

	elem := s.order.PushFront(&memoryEntry{
		key:       key,
		verdict:   verdict,
		expiresAt: expiresAt,
	})
	s.entries[key] = elem
}

// Stats returns hit/miss/eviction counters and the current entry count.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	entries := len(s.entries)
	s.mu.Unlock()

	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Entries:   entries,
	}
}

// Close stops the background sweep goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// removeLocked removes an entry from both the map and the LRU list.
// Caller must hold mu.
func (s *MemoryStore) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(s.entries, entry.key)
	s.order.Remove(elem)
}

// sweep periodically removes expired entries so memory is reclaimed even
// for keys that are never read again.
func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for elem := s.order.Back(); elem != nil; {
				prev := elem.Prev()
				entry := elem.Value.(*memoryEntry)
				if now.After(entry.expiresAt) {
					s.removeLocked(elem)
				}
				elem = prev
			}
			s.mu.Unlock()
		}
	}
}
