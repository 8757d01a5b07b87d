package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a unique ID and resolves the client IP
// from the connection. A client-supplied X-Request-ID is honored; otherwise
// a UUID is generated. Both values land in the request context and the ID
// is echoed in the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, ClientIPKey, clientIP(r))

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP resolves the peer address. The connection address is
// authoritative: forwarding headers are client-controlled and must not
// influence allowlist or rate-limit identity.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
