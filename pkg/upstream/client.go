package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config configures the shared forwarding client.
type Config struct {
	// BaseURL is the backend root, e.g. "http://127.0.0.1:11434".
	BaseURL string

	// Timeout bounds non-streaming round trips. Streaming requests are
	// bounded by the caller's context instead, since a healthy stream
	// may legitimately outlast any fixed request timeout.
	Timeout time.Duration

	// MaxConnections bounds total connections per backend host.
	MaxConnections int

	// MaxIdleConns bounds the keep-alive pool.
	MaxIdleConns int

	// IdleConnTimeout closes idle pooled connections after this long.
	IdleConnTimeout time.Duration

	// InlineBodyLimit is the payload size in bytes above which request
	// bodies are streamed with chunked encoding instead of being sent
	// from a single in-memory reader.
	InlineBodyLimit int
}

// Client is the shared, connection-pooled HTTP client for the backend.
// One instance is constructed at startup and injected into the pipeline;
// it is safe for concurrent use.
type Client struct {
	config  Config
	client  *http.Client
	baseURL string
}

// NewClient creates the forwarding client with a pooled transport.
func NewClient(config Config) *Client {
	transport := &http.Transport{
		MaxConnsPerHost:     config.MaxConnections,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client: &http.Client{
			Transport: transport,
			// No client-level timeout: it would sever long-lived
			// streams. Deadlines come from request contexts.
		},
	}
}

// Get performs a GET round trip and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil)
}

// Post performs a POST round trip with a JSON payload and returns the
// response body.
func (c *Client) Post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodPost, path, payload)
}

// Stream opens a streaming POST to the backend. The returned Stream yields
// chunks as they arrive; closing it cancels the upstream connection
// immediately, which stops the backend from producing unused tokens.
func (c *Client) Stream(ctx context.Context, path string, payload []byte) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(streamCtx, http.MethodPost, path, payload)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, c.wrapTransportError(req.URL.String(), err, ctx)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return newStream(resp.Body, cancel), nil
}

// Close drains and closes all pooled connections. Called once during
// coordinated shutdown.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	slog.Debug("upstream connection pool closed", "base_url", c.baseURL)
	return nil
}

// roundTrip performs a buffered request/response exchange with the
// configured non-streaming timeout.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.wrapTransportError(req.URL.String(), err, ctx)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectError{URL: req.URL.String(), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		truncated := body
		if len(truncated) > 4096 {
			truncated = truncated[:4096]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(truncated)}
	}

	return body, nil
}

// newRequest builds a request with the payload strategy selected by size:
// inline in-memory body with explicit Content-Length up to the limit,
// chunked pipe-fed body above it.
func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	url := c.baseURL + path

	var body io.Reader
	chunked := false
	if len(payload) > 0 {
		if c.config.InlineBodyLimit > 0 && len(payload) > c.config.InlineBodyLimit {
			pr, pw := io.Pipe()
			go func() {
				_, err := io.Copy(pw, bytes.NewReader(payload))
				pw.CloseWithError(err)
			}()
			body = pr
			chunked = true
		} else {
			body = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
		if chunked {
			// Force chunked transfer so the transport never tries to
			// rewind or re-buffer the piped body.
			req.ContentLength = -1
		}
	}

	return req, nil
}

// wrapTransportError classifies a transport failure into the timeout or
// connect error channel.
func (c *Client) wrapTransportError(url string, err error, ctx context.Context) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{URL: url, Timeout: c.config.Timeout}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Caller cancelled; propagate as-is so it is not mistaken for
		// a backend fault.
		return ctxErr
	}
	return &ConnectError{URL: url, Cause: err}
}
