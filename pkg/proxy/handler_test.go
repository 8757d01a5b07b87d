package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/admission"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/allowlist"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard/cache"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/pipeline"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/ratelimit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/upstream"
)

// fakeScanner blocks text containing the configured needle, otherwise
// allows.
type fakeScanner struct {
	needle string
}

func (s *fakeScanner) verdict(text string) (*guard.Verdict, error) {
	if s.needle != "" && strings.Contains(text, s.needle) {
		return &guard.Verdict{
			Allowed: false,
			Scanners: map[string]guard.ScannerResult{
				"ban_substrings": {Passed: false, Reason: "matched banned content", Score: 1},
			},
		}, nil
	}
	return guard.Allow(), nil
}

func (s *fakeScanner) ScanInput(_ context.Context, text string) (*guard.Verdict, error) {
	return s.verdict(text)
}

func (s *fakeScanner) ScanOutput(_ context.Context, text, _ string) (*guard.Verdict, error) {
	return s.verdict(text)
}

func newTestLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.Config{Burst: 100, PerMinute: 1000, PerHour: 10000})
}

type handlerEnv struct {
	handler    http.Handler
	controller *admission.Controller
}

func newHandlerEnv(t *testing.T, backend http.Handler, scanner guard.Scanner) *handlerEnv {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return newHandlerEnvAt(t, srv.URL, scanner)
}

func newHandlerEnvAt(t *testing.T, backendURL string, scanner guard.Scanner) *handlerEnv {
	t.Helper()

	client := upstream.NewClient(upstream.Config{BaseURL: backendURL, Timeout: 5 * time.Second})
	t.Cleanup(func() { client.Close() })

	store := cache.NewMemoryStore(time.Minute, 128)
	t.Cleanup(func() { store.Close() })

	controller := admission.NewController(admission.Config{
		MaxParallel:  2,
		MaxQueue:     0,
		QueueTimeout: time.Second,
	})

	p := pipeline.New(scanner, store, controller, client, pipeline.Config{
		ScanCadenceChars: 500,
		MinOutputLength:  8,
		ConfigVersion:    "v1",
	}, nil)

	al, err := allowlist.New(nil)
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}

	h := NewHandler(HandlerConfig{
		Pipeline:   p,
		Controller: controller,
		Limiter:    newTestLimiter(),
		Store:      store,
		Allow:      func() *allowlist.Allowlist { return al },
	})
	mux := http.NewServeMux()
	h.Register(mux)

	return &handlerEnv{handler: mux, controller: controller}
}

func (e *handlerEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.7:4242"
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestGenerateBuffered(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"Paris is the capital.","done":true}`)
	})
	env := newHandlerEnv(t, backend, &fakeScanner{})

	rec := env.post(t, "/api/generate", `{"prompt":"capital of France?","stream":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Paris") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGenerateInputBlocked(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend contacted for blocked input")
	})
	env := newHandlerEnv(t, backend, &fakeScanner{needle: "forbidden"})

	for _, stream := range []string{"false", "true"} {
		rec := env.post(t, "/api/generate", `{"prompt":"something forbidden","stream":`+stream+`}`)
		if rec.Code != http.StatusUnavailableForLegalReasons {
			t.Fatalf("stream=%s: status = %d, want 451", stream, rec.Code)
		}

		var body struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
			Guard struct {
				FailedScanners []guard.FailedScanner `json:"failed_scanners"`
			} `json:"guard"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("stream=%s: body is not JSON: %v", stream, err)
		}
		if body.Error.Type != "input_blocked" {
			t.Errorf("stream=%s: error.type = %q", stream, body.Error.Type)
		}
		if len(body.Guard.FailedScanners) != 1 || body.Guard.FailedScanners[0].Scanner != "ban_substrings" {
			t.Errorf("stream=%s: failed_scanners = %+v", stream, body.Guard.FailedScanners)
		}
	}
}

func TestGenerateStreaming(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"chunk one ","done":false}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"response":"chunk two","done":false}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})
	env := newHandlerEnv(t, backend, &fakeScanner{})

	rec := env.post(t, "/api/generate", `{"prompt":"stream please"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	var last struct {
		Done bool `json:"done"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil || !last.Done {
		t.Errorf("final line = %q, want done marker", lines[2])
	}
}

func TestGenerateStreamingOutputBlocked(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"harmless beginning, ","done":false}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"response":"then something forbidden","done":true}`)
	})
	env := newHandlerEnv(t, backend, &fakeScanner{needle: "forbidden"})

	rec := env.post(t, "/api/chat", `{"messages":[{"role":"user","content":"go"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (stream already started when blocked)", rec.Code)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	last := lines[len(lines)-1]
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
		Done bool `json:"done"`
	}
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("final line is not JSON: %v (%s)", err, last)
	}
	if payload.Error.Type != "output_blocked" || !payload.Done {
		t.Errorf("final line = %s, want output_blocked with done=true", last)
	}
	// The backend's done marker must not leak after the block chunk.
	for _, line := range lines[:len(lines)-1] {
		if strings.Contains(line, `"done":true`) {
			t.Errorf("done marker leaked before block chunk: %s", line)
		}
	}
}

func TestGenerateBadRequests(t *testing.T) {
	env := newHandlerEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), &fakeScanner{})

	if rec := env.post(t, "/api/generate", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	req.RemoteAddr = "10.0.0.7:4242"
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}

func TestGenerateQueueFull(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"ok","done":true}`)
	})
	env := newHandlerEnv(t, backend, &fakeScanner{})

	// Occupy both slots; with a zero-length queue the next request is
	// rejected immediately.
	for i := 0; i < 2; i++ {
		slot, err := env.controller.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		defer slot.Release()
	}

	rec := env.post(t, "/api/generate", `{"prompt":"hi","stream":false}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "queue_full") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGenerateUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	env := newHandlerEnvAt(t, url, &fakeScanner{})

	rec := env.post(t, "/api/generate", `{"prompt":"hi","stream":false}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream_unreachable") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealthAndStats(t *testing.T) {
	env := newHandlerEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), &fakeScanner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats body is not JSON: %v", err)
	}
	for _, key := range []string{"admission", "cache", "allowlist", "ratelimit"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q section", key)
		}
	}
}
