package middleware

import "net/http"

// Chain composes middleware outermost-first: Chain(h, a, b) runs a, then
// b, then h.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
