// GuardGate is a security-enforcing reverse proxy for LLM backends.
//
// It sits between API clients and an inference backend (Ollama or any
// OpenAI-compatible server), providing:
//   - Input and output content scanning with mid-stream abort
//   - Admission control bounding concurrent upstream generations
//   - Per-client sliding-window rate limiting
//   - Client IP allowlisting
//   - A persistent audit trail of blocked requests
//
// Usage:
//
//	# Start the proxy with default configuration
//	guardgate run
//
//	# Start with a custom configuration file
//	guardgate run --config /etc/guardgate/config.yaml
//
//	# Validate a configuration file without starting
//	guardgate validate --config /etc/guardgate/config.yaml
//
//	# Inspect recorded block events
//	guardgate audit recent --limit 20
//
//	# Show version information
//	guardgate version
package main

func main() {
	Execute()
}
