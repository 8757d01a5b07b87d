package middleware

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// ClientIPKey stores the client IP resolved from the connection.
	ClientIPKey contextKey = "client_ip"
)

// GetRequestID returns the request ID from ctx, or "" when absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetClientIP returns the resolved client IP from ctx, or "" when absent.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}
