package ratelimit

import (
	"sync"
	"time"
)

// Window durations for the three rolling histories.
const (
	burstWindow  = time.Second
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Limiter enforces per-client request limits over burst, minute, and hour
// windows. Clients are identified by an opaque string (GuardGate uses the
// client IP).
type Limiter struct {
	config Config

	// now is replaceable in tests to step through window expiry.
	now func() time.Time

	// mu protects histories. Held only for timestamp pruning and
	// appends; never across a suspension point.
	mu        sync.Mutex
	histories map[string]*history
}

// history holds one client's rolling timestamp windows. Timestamps older
// than their window are pruned lazily on every access.
type history struct {
	burst  []time.Time
	minute []time.Time
	hour   []time.Time
}

// NewLimiter creates a rate limiter with the given per-window maximums.
// Zero limits disable their window entirely.
func NewLimiter(config Config) *Limiter {
	return &Limiter{
		config:    config,
		now:       time.Now,
		histories: make(map[string]*history),
	}
}

// SetConfig replaces the per-window maximums at runtime. Existing request
// histories are kept; the new limits apply from the next check.
func (l *Limiter) SetConfig(config Config) {
	l.mu.Lock()
	l.config = config
	l.mu.Unlock()
}

// IsAllowed checks and records a request from clientID.
//
// All three windows are pruned and checked first; if any is at its maximum
// the request is rejected with a reason naming that window and nothing is
// recorded. Otherwise the current timestamp is recorded in all three
// windows and the request is admitted.
func (l *Limiter) IsAllowed(clientID string) *CheckResult {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.histories[clientID]
	if !ok {
		h = &history{}
		l.histories[clientID] = h
	}
	h.prune(now)

	if l.config.Burst > 0 && len(h.burst) >= l.config.Burst {
		return &CheckResult{
			Allowed:    false,
			Reason:     "burst limit exceeded",
			Window:     "burst",
			Limit:      l.config.Burst,
			Remaining:  0,
			RetryAfter: retryAfter(h.burst, burstWindow, now),
		}
	}

	if l.config.PerMinute > 0 && len(h.minute) >= l.config.PerMinute {
		return &CheckResult{
			Allowed:    false,
			Reason:     "per-minute limit exceeded",
			Window:     "minute",
			Limit:      l.config.PerMinute,
			Remaining:  0,
			RetryAfter: retryAfter(h.minute, minuteWindow, now),
		}
	}

	if l.config.PerHour > 0 && len(h.hour) >= l.config.PerHour {
		return &CheckResult{
			Allowed:    false,
			Reason:     "per-hour limit exceeded",
			Window:     "hour",
			Limit:      l.config.PerHour,
			Remaining:  0,
			RetryAfter: retryAfter(h.hour, hourWindow, now),
		}
	}

	h.burst = append(h.burst, now)
	h.minute = append(h.minute, now)
	h.hour = append(h.hour, now)

	return &CheckResult{
		Allowed:   true,
		Limit:     l.config.PerMinute,
		Remaining: remaining(l.config.PerMinute, len(h.minute)),
	}
}

// Stats returns the remaining quota per window for clientID without
// recording a request.
func (l *Limiter) Stats(clientID string) Stats {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		BurstLimit:  l.config.Burst,
		MinuteLimit: l.config.PerMinute,
		HourLimit:   l.config.PerHour,
	}

	h, ok := l.histories[clientID]
	if !ok {
		stats.BurstRemaining = l.config.Burst
		stats.MinuteRemaining = l.config.PerMinute
		stats.HourRemaining = l.config.PerHour
		return stats
	}
	h.prune(now)

	stats.BurstRemaining = remaining(l.config.Burst, len(h.burst))
	stats.MinuteRemaining = remaining(l.config.PerMinute, len(h.minute))
	stats.HourRemaining = remaining(l.config.PerHour, len(h.hour))
	return stats
}

// Reset clears a client's history. Administrative operation only.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.histories, clientID)
}

// Clients returns the number of clients with live history, for diagnostics.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.histories)
}

// prune drops timestamps that have aged out of their window.
func (h *history) prune(now time.Time) {
	h.burst = pruneWindow(h.burst, now.Add(-burstWindow))
	h.minute = pruneWindow(h.minute, now.Add(-minuteWindow))
	h.hour = pruneWindow(h.hour, now.Add(-hourWindow))
}

// pruneWindow returns the suffix of timestamps newer than cutoff.
// Timestamps are appended in order, so a single scan from the front finds
// the retention boundary.
func pruneWindow(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[idx:]...)
}

// retryAfter computes how long until the oldest in-window timestamp ages
// out, freeing one unit of quota.
func retryAfter(stamps []time.Time, window time.Duration, now time.Time) time.Duration {
	if len(stamps) == 0 {
		return 0
	}
	wait := stamps[0].Add(window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return 0
	}
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}
