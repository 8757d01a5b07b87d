// Package ratelimit provides per-client request rate limiting over rolling
// time windows.
//
// # Overview
//
// Each client (keyed by IP) gets three rolling timestamp windows:
//
//   - Burst: requests within the last second
//   - Minute: requests within the last 60 seconds
//   - Hour: requests within the last hour
//
// A request is admitted only if all three windows have headroom; on
// admission its timestamp is recorded in all three. Rejections name the
// specific window that was exceeded so the reason can be surfaced to the
// client.
//
//	result := limiter.IsAllowed(clientIP)
//	if !result.Allowed {
//	    // result.Reason identifies the exceeded window
//	    // result.RetryAfter suggests how long to back off
//	}
//
// # Pruning
//
// Timestamps older than their window are pruned lazily each time that
// client's history is touched; there is no background sweeper. A client's
// history is only ever discarded wholesale by the administrative Reset.
//
// # Thread Safety
//
// The limiter is safe for concurrent use across requests for the same and
// different clients. A single mutex guards the history map; it is held only
// for the in-memory window updates, never across I/O.
package ratelimit
