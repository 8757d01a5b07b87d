package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteScanner is a Scanner backed by an external scan service over HTTP.
// The service performs the actual ML-based content analysis; this client
// only moves text and verdicts across the wire.
//
// Endpoints: POST {base}/v1/scan/input and POST {base}/v1/scan/output, both
// accepting a JSON scan request and returning a verdict in the Verdict wire
// shape.
type RemoteScanner struct {
	baseURL string
	client  *http.Client
}

// RemoteConfig configures a RemoteScanner.
type RemoteConfig struct {
	// ServiceURL is the scan service root.
	ServiceURL string

	// Timeout bounds a single scan invocation.
	Timeout time.Duration
}

// NewRemoteScanner creates a scanner client for the service at
// cfg.ServiceURL.
func NewRemoteScanner(cfg RemoteConfig) *RemoteScanner {
	return &RemoteScanner{
		baseURL: strings.TrimRight(cfg.ServiceURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// scanRequest is the wire shape sent to the scan service.
type scanRequest struct {
	// Text is the content to analyze.
	Text string `json:"text"`

	// Context carries the originating prompt on output scans, so
	// context-sensitive scanners can judge the pair.
	Context string `json:"context,omitempty"`
}

// ScanInput scans a client prompt before forwarding.
func (s *RemoteScanner) ScanInput(ctx context.Context, text string) (*Verdict, error) {
	return s.scan(ctx, "/v1/scan/input", scanRequest{Text: text})
}

// ScanOutput scans generated text against the originating prompt.
func (s *RemoteScanner) ScanOutput(ctx context.Context, text, promptContext string) (*Verdict, error) {
	return s.scan(ctx, "/v1/scan/output", scanRequest{Text: text, Context: promptContext})
}

func (s *RemoteScanner) scan(ctx context.Context, path string, payload scanRequest) (*Verdict, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("scan service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("failed to decode scan verdict: %w", err)
	}

	return &verdict, nil
}
