// Package cache provides the guard decision cache: a memoization layer for
// safety-scan verdicts keyed by content hash.
//
// # Overview
//
// Scanning is the most expensive step in the request path, so GuardGate
// memoizes verdicts. Two backends implement the Store interface:
//
//   - Memory: a bounded in-process map with LRU eviction and TTL expiry,
//     suitable for single-instance deployments
//   - Redis: a networked backend so multiple proxy instances share one
//     decision cache
//
// # Failure Semantics
//
// The cache is a pure optimization, never a correctness dependency. Both
// backends degrade on failure: Get returns a miss, Set becomes a no-op. A
// down Redis slows the proxy (every scan runs) but never rejects a request.
//
// # Entry Semantics
//
// Entries are immutable once written; Set with an existing key fully
// replaces the prior value. An entry's age never exceeds the configured TTL
// when read: the memory backend checks lazily on Get and sweeps in the
// background, Redis enforces per-key expiry natively.
package cache
