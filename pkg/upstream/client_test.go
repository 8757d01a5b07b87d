package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:         server.URL,
		Timeout:         5 * time.Second,
		MaxConnections:  10,
		MaxIdleConns:    5,
		IdleConnTimeout: time.Minute,
		InlineBodyLimit: 1024,
	})
	t.Cleanup(func() { client.Close() })

	return client, server
}

func TestClient_Post(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		fmt.Fprint(w, `{"response":"ok"}`)
	})

	body, err := client.Post(context.Background(), "/api/generate", []byte(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if string(body) != `{"response":"ok"}` {
		t.Errorf("Unexpected response body: %s", body)
	}
	if string(gotBody) != `{"prompt":"hi"}` {
		t.Errorf("Backend received wrong payload: %s", gotBody)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
}

func TestClient_Get(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		fmt.Fprint(w, `{"version":"0.5.1"}`)
	})

	body, err := client.Get(context.Background(), "/api/version")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "0.5.1") {
		t.Errorf("Unexpected body: %s", body)
	}
}

func TestClient_StatusError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := client.Post(context.Background(), "/api/generate", []byte(`{}`))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "model not found") {
		t.Errorf("Expected error body preserved, got %q", statusErr.Body)
	}
}

func TestClient_ConnectError(t *testing.T) {
	// Start and immediately stop a server to get a dead port.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: deadURL, Timeout: time.Second})
	defer client.Close()

	_, err := client.Post(context.Background(), "/api/generate", []byte(`{}`))

	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("Expected ConnectError, got %v", err)
	}
}

func TestClient_TimeoutError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client.config.Timeout = 50 * time.Millisecond

	_, err := client.Post(context.Background(), "/api/generate", []byte(`{}`))

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
}

func TestClient_CallerCancellationIsNotBackendFault(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Post(ctx, "/api/generate", []byte(`{}`))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	var connectErr *ConnectError
	if errors.As(err, &connectErr) {
		t.Error("Caller cancellation must not be classified as a backend fault")
	}
}

func TestClient_InlineBody(t *testing.T) {
	var gotLength int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{}`)
	})

	payload := []byte(`{"prompt":"small"}`)
	if _, err := client.Post(context.Background(), "/api/generate", payload); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if gotLength != int64(len(payload)) {
		t.Errorf("Expected explicit Content-Length %d for inline body, got %d", len(payload), gotLength)
	}
}

func TestClient_ChunkedBodyAboveLimit(t *testing.T) {
	var gotLength int64
	var gotBody []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{}`)
	})

	// Above the 1KiB inline limit configured by newTestClient.
	large, _ := json.Marshal(map[string]string{"prompt": strings.Repeat("x", 4096)})
	if _, err := client.Post(context.Background(), "/api/generate", large); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if gotLength > 0 {
		t.Errorf("Expected chunked transfer (no Content-Length) for large body, got %d", gotLength)
	}
	if len(gotBody) != len(large) {
		t.Errorf("Body mangled in transit: sent %d bytes, backend saw %d", len(large), len(gotBody))
	}
}
