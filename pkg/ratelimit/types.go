package ratelimit

import "time"

// Config contains the per-window maximums applied to every client.
// Zero values disable the corresponding window.
type Config struct {
	// Burst limits requests within any one-second window.
	Burst int

	// PerMinute limits requests within any 60-second window.
	PerMinute int

	// PerHour limits requests within any one-hour window.
	PerHour int
}

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Reason names the exceeded window when Allowed is false.
	Reason string

	// Window is the machine-readable name of the exceeded window:
	// "burst", "minute", or "hour". Empty when allowed.
	Window string

	// Limit is the configured maximum of the exceeded window
	// (or the tightest configured window when allowed).
	Limit int

	// Remaining is the headroom left in that window.
	Remaining int

	// RetryAfter suggests how long to wait before retrying.
	RetryAfter time.Duration
}

// Stats reports the remaining quota per window for one client, for
// X-RateLimit-* response headers and the diagnostics endpoint.
type Stats struct {
	BurstRemaining  int `json:"burst_remaining"`
	MinuteRemaining int `json:"minute_remaining"`
	HourRemaining   int `json:"hour_remaining"`
	BurstLimit      int `json:"burst_limit"`
	MinuteLimit     int `json:"minute_limit"`
	HourLimit       int `json:"hour_limit"`
}
