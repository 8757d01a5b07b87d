package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/allowlist"
)

// Allowlist rejects requests from clients outside the IP allowlist with
// 403. The allowlist is fetched per request through the getter so hot
// reloads take effect without restarting the chain. onDenied (optional)
// fires once per rejection, for metrics.
func Allowlist(get func() *allowlist.Allowlist, onDenied func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r.Context())
			if get().IsAllowed(ip) {
				next.ServeHTTP(w, r)
				return
			}

			if onDenied != nil {
				onDenied()
			}
			slog.WarnContext(r.Context(), "client not allowlisted",
				"client", ip,
				"request_id", GetRequestID(r.Context()),
			)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"type":"forbidden","message":"client address is not allowlisted"}}`)
		})
	}
}
