// Package upstream implements the pooled HTTP forwarding layer to the LLM
// inference backend.
//
// # Overview
//
// A single Client instance is shared by all requests. It wraps one
// connection-pooled http.Client (bounded max connections, keep-alives,
// HTTP/2 attempt) and exposes three operations:
//
//   - Get: small control-plane reads (model list, version)
//   - Post: buffered request/response round trips
//   - Stream: a cancellable handle over the backend's incremental output
//
// # Payload Preparation
//
// Request bodies at or below the inline limit are sent with an explicit
// Content-Length from an in-memory reader. Larger bodies are fed through an
// io.Pipe with chunked transfer encoding so a very large prompt is never
// duplicated into a second contiguous buffer.
//
// # Error Channel
//
// Backend failures surface as typed errors distinct from guard blocks:
// *ConnectError (unreachable), *TimeoutError (deadline exceeded), and
// *StatusError (non-2xx reply). Callers map these to 502/504 while guard
// blocks travel on a separate path entirely.
//
// # Wire Format
//
// Streaming responses are newline-delimited JSON in the Ollama style; the
// reader also tolerates SSE "data:" framing and the OpenAI-compatible
// delta shape, extracting generated text uniformly into Chunk.Text.
package upstream
