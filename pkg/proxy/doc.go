// Package proxy implements GuardGate's HTTP surface.
//
// Handler serves the proxied inference endpoints (POST /api/generate,
// POST /api/chat) plus health and diagnostics, delegating request
// enforcement to the pipeline. The middleware subpackage provides the
// perimeter chain: request ID, logging, recovery, IP allowlist, rate
// limiting, and timeout.
//
// Error mapping (errors.go) translates the enforcement taxonomy into HTTP
// responses: guard blocks become 451 with a structured JSON body, queue
// saturation 429, queue timeout 503, rate limiting 429 with X-RateLimit-*
// headers, allowlist denial 403, and upstream failures 502/504.
package proxy
