package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/ratelimit"
)

// RateLimit enforces the per-client quotas. Rejections answer 429 with the
// exceeded window named in the body and Retry-After set. Every response
// carries X-RateLimit-* headers from Stats: the bare Limit/Remaining pair
// covers the minute window, with per-window variants for each configured
// window. onRejected (optional) fires once per rejection with the exceeded
// window.
func RateLimit(limiter *ratelimit.Limiter, onRejected func(window string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r.Context())
			result := limiter.IsAllowed(ip)

			stats := limiter.Stats(ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(stats.MinuteLimit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(stats.MinuteRemaining))
			setWindowHeaders(w, "Burst", stats.BurstLimit, stats.BurstRemaining)
			setWindowHeaders(w, "Minute", stats.MinuteLimit, stats.MinuteRemaining)
			setWindowHeaders(w, "Hour", stats.HourLimit, stats.HourRemaining)

			if result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if onRejected != nil {
				onRejected(result.Window)
			}

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"type":    "rate_limited",
					"message": result.Reason,
					"window":  result.Window,
				},
			})
		})
	}
}

// setWindowHeaders emits the limit/remaining pair for one window. Windows
// with no configured limit stay silent.
func setWindowHeaders(w http.ResponseWriter, window string, limit, remaining int) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit-"+window, strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining-"+window, strconv.Itoa(remaining))
}
