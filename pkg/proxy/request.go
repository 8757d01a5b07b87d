package proxy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxRequestBody bounds how much of a client body is read. Payloads are
// forwarded verbatim, so the bound only protects the proxy's own memory.
const maxRequestBody = 32 << 20 // 32MB

// parsedRequest is the scanner-relevant view of a client payload.
type parsedRequest struct {
	// Prompt is the text submitted for input scanning.
	Prompt string

	// Stream reports whether the client asked for a streamed response.
	// The backend API streams by default.
	Stream bool
}

type generatePayload struct {
	Prompt string `json:"prompt"`
	Stream *bool  `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Messages []chatMessage `json:"messages"`
	Stream   *bool         `json:"stream"`
}

// parseGenerate extracts the prompt and stream flag from a /api/generate
// payload.
func parseGenerate(body []byte) (*parsedRequest, error) {
	var payload generatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &parsedRequest{
		Prompt: payload.Prompt,
		Stream: payload.Stream == nil || *payload.Stream,
	}, nil
}

// parseChat extracts the scannable text and stream flag from a /api/chat
// payload. All message contents are scanned, not just the latest turn:
// injection attempts routinely hide in earlier messages.
func parseChat(body []byte) (*parsedRequest, error) {
	var payload chatPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	var parts []string
	for _, msg := range payload.Messages {
		if msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}

	return &parsedRequest{
		Prompt: strings.Join(parts, "\n"),
		Stream: payload.Stream == nil || *payload.Stream,
	}, nil
}
