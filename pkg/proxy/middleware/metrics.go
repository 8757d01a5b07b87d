package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// Metrics records one observation per completed request through record,
// labeled with the route path and response status.
func Metrics(record func(path, status string, duration time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			record(r.URL.Path, strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}
