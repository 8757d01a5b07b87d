// Package server assembles the proxy from its components and manages the
// HTTP server lifecycle.
//
// The server wires configuration into the cache, admission controller,
// rate limiter, allowlist, guard scanner, upstream client, audit recorder,
// and scan pipeline, then mounts the proxy routes behind the middleware
// chain. It handles graceful shutdown on SIGTERM/SIGINT and, when given a
// configuration path, hot-reloads the allowlist and rate limits on file
// change.
//
// # Middleware Chain
//
// Requests pass through, outermost first:
//  1. Recovery: turns panics into 500 responses
//  2. RequestID: tags the request for log correlation
//  3. Logging: one structured line per request
//  4. Metrics: request counters and latency histograms
//  5. Allowlist: rejects clients outside the configured IP set
//  6. RateLimit: per-client sliding-window quotas
//
// The metrics endpoint is mounted outside the allowlist and rate limiter
// so scrapers are never counted against client quotas.
package server
