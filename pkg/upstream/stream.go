package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// Chunk is one unit of streamed backend output.
type Chunk struct {
	// Raw is the chunk exactly as the backend sent it, minus framing.
	// The pipeline forwards Raw unmodified so clients see the backend's
	// native wire format.
	Raw []byte

	// Text is the generated text extracted from the chunk, used for
	// incremental safety scanning. Empty for chunks that carry no text
	// (e.g. the final statistics object).
	Text string

	// Done marks the backend's final chunk.
	Done bool
}

// Stream is a cancellable handle over the backend's incremental output.
// It is owned by exactly one goroutine; Recv must not be called
// concurrently.
type Stream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// maxLineSize bounds a single streamed line. Backend chunks are small, but
// a model can emit a long run without newlines inside one JSON string.
const maxLineSize = 1024 * 1024

func newStream(body io.ReadCloser, cancel context.CancelFunc) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Stream{
		body:    body,
		scanner: scanner,
		cancel:  cancel,
	}
}

// Recv returns the next chunk from the backend.
// Returns nil, io.EOF when the stream ends normally; any other error means
// the stream broke mid-flight.
func (s *Stream) Recv() (*Chunk, error) {
	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &ConnectError{URL: "", Cause: err}
			}
			return nil, io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		// Tolerate SSE framing from OpenAI-compatible backends.
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if line == "[DONE]" {
				return &Chunk{Raw: []byte(line), Done: true}, nil
			}
			if line == "" {
				continue
			}
		} else if strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			// SSE comments and event names carry no payload.
			continue
		}

		chunk := &Chunk{Raw: []byte(line)}
		chunk.Text, chunk.Done = ExtractText([]byte(line))
		return chunk, nil
	}
}

// Close cancels the upstream request and releases the connection. It is
// idempotent and safe to call from a different goroutine than Recv, which
// is how a guard block aborts generation mid-stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.body.Close()
	})
	return nil
}

// wireChunk covers the chunk shapes of the supported backends: Ollama
// generate ("response"/"done"), Ollama chat ("message.content"), and the
// OpenAI-compatible delta form.
type wireChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Message  struct {
		Content string `json:"content"`
	} `json:"message"`
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ExtractText pulls generated text and the done flag out of a raw chunk or
// a complete non-streaming response body. Unparseable input yields no text:
// chunks are still forwarded raw, just not scanned.
func ExtractText(raw []byte) (text string, done bool) {
	var wc wireChunk
	if err := json.Unmarshal(raw, &wc); err != nil {
		return "", false
	}

	done = wc.Done

	switch {
	case wc.Response != "":
		text = wc.Response
	case wc.Message.Content != "":
		text = wc.Message.Content
	case len(wc.Choices) > 0:
		choice := wc.Choices[0]
		if choice.Delta.Content != "" {
			text = choice.Delta.Content
		} else {
			text = choice.Text
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			done = true
		}
	}

	return text, done
}
