package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/allowlist"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDGenerated(t *testing.T) {
	var gotID, gotIP string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotIP = GetClientIP(r.Context())
	}))

	req := httptest.NewRequest("POST", "/api/generate", nil)
	req.RemoteAddr = "192.168.1.50:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotID == "" {
		t.Error("request ID not generated")
	}
	if rec.Header().Get(RequestIDHeader) != gotID {
		t.Error("request ID not echoed in response headers")
	}
	if gotIP != "192.168.1.50" {
		t.Errorf("client IP = %q, want 192.168.1.50", gotIP)
	}
}

func TestRequestIDHonorsClientValue(t *testing.T) {
	var gotID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotID != "client-supplied-id" {
		t.Errorf("request ID = %q, want client-supplied-id", gotID)
	}
}

func TestRecoveryAnswers500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAllowlistMiddleware(t *testing.T) {
	al, err := allowlist.New([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}
	var denied int
	h := Chain(okHandler(),
		RequestID,
		Allowlist(func() *allowlist.Allowlist { return al }, func() { denied++ }),
	)

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:1000", http.StatusOK},
		{"11.0.0.1:1000", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.RemoteAddr = tt.remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("remote %s: status = %d, want %d", tt.remote, rec.Code, tt.want)
		}
	}
	if denied != 1 {
		t.Errorf("denied callback fired %d times, want 1", denied)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{PerMinute: 2})
	var rejectedWindow string
	h := Chain(okHandler(),
		RequestID,
		RateLimit(limiter, func(window string) { rejectedWindow = window }),
	)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.RemoteAddr = "10.0.0.7:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", first.Header().Get("X-RateLimit-Limit"))
	}
	if first.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("X-RateLimit-Remaining = %q, want 1", first.Header().Get("X-RateLimit-Remaining"))
	}

	send()
	third := send()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", third.Code)
	}
	if third.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on rejection")
	}
	if rejectedWindow != "minute" {
		t.Errorf("rejected window = %q, want minute", rejectedWindow)
	}

	var body struct {
		Error struct {
			Type   string `json:"type"`
			Window string `json:"window"`
		} `json:"error"`
	}
	if err := json.Unmarshal(third.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body is not JSON: %v", err)
	}
	if body.Error.Type != "rate_limited" || body.Error.Window != "minute" {
		t.Errorf("rejection body = %s", third.Body.String())
	}
}

func TestRateLimitPerWindowHeaders(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{Burst: 5, PerMinute: 2, PerHour: 100})
	h := Chain(okHandler(), RequestID, RateLimit(limiter, nil))

	req := httptest.NewRequest("POST", "/api/generate", nil)
	req.RemoteAddr = "10.0.0.7:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	want := map[string]string{
		"X-RateLimit-Limit-Burst":      "5",
		"X-RateLimit-Remaining-Burst":  "4",
		"X-RateLimit-Limit-Minute":     "2",
		"X-RateLimit-Remaining-Minute": "1",
		"X-RateLimit-Limit-Hour":       "100",
		"X-RateLimit-Remaining-Hour":   "99",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}

	// Windows without a configured limit emit no header pair.
	bare := ratelimit.NewLimiter(ratelimit.Config{PerMinute: 2})
	h = Chain(okHandler(), RequestID, RateLimit(bare, nil))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-RateLimit-Limit-Burst"); got != "" {
		t.Errorf("unconfigured burst window emitted header %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Limit-Hour"); got != "" {
		t.Errorf("unconfigured hour window emitted header %q", got)
	}
}

func TestRateLimitClientsIndependent(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{PerMinute: 1})
	h := Chain(okHandler(), RequestID, RateLimit(limiter, nil))

	send := func(remote string) int {
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1:1"); got != http.StatusOK {
		t.Errorf("first client first request = %d", got)
	}
	if got := send("10.0.0.1:1"); got != http.StatusTooManyRequests {
		t.Errorf("first client second request = %d, want 429", got)
	}
	if got := send("10.0.0.2:1"); got != http.StatusOK {
		t.Errorf("second client blocked by first client's quota: %d", got)
	}
}
