package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// State identifies where a request is in the pipeline, for logging.
type State string

const (
	StateScanningInput State = "scanning_input"
	StateForwarding    State = "forwarding"
	StateStreaming     State = "streaming"
	StateCompleted     State = "completed"
	StateBlocked       State = "blocked"
)

// Config holds the pipeline's guard policy knobs.
type Config struct {
	// ScanCadenceChars triggers an incremental scan pass once the
	// accumulated output has grown this much since the last pass.
	ScanCadenceChars int

	// MinOutputLength is the floor below which output scanning is
	// skipped as statistically unreliable.
	MinOutputLength int

	// BlockOnInputScanError selects fail-closed (true) or fail-open
	// (false) handling of input scanner faults.
	BlockOnInputScanError bool

	// BlockOnOutputScanError is the same policy for output scans.
	BlockOnOutputScanError bool

	// ConfigVersion tags cache keys with the active scanner
	// configuration so changing the scanner set invalidates old entries.
	ConfigVersion string
}

// Request is one client request entering the pipeline.
type Request struct {
	// Path is the upstream endpoint, e.g. "/api/generate".
	Path string

	// Payload is the raw client body, forwarded verbatim on pass.
	Payload []byte

	// Prompt is the text extracted from the payload for input scanning
	// and as context for output scanning.
	Prompt string

	// ClientID identifies the caller (client IP) for audit records.
	ClientID string
}

// Observer receives pipeline events. Implementations bridge to metrics and
// the audit store; all methods must be cheap and non-blocking.
type Observer interface {
	// ScanCompleted fires after every scan pass (cached or live).
	ScanCompleted(direction guard.Direction, cached bool, allowed bool, elapsed time.Duration)

	// RequestBlocked fires once per blocked request.
	RequestBlocked(ctx context.Context, req *Request, blocked *BlockedError)
}

// NopObserver is an Observer that does nothing.
type NopObserver struct{}

func (NopObserver) ScanCompleted(guard.Direction, bool, bool, time.Duration) {}
func (NopObserver) RequestBlocked(context.Context, *Request, *BlockedError)  {}

// blockPayload is the wire shape of a rejection, shared by the HTTP 451
// body and the synthetic stream chunk.
type blockPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Guard struct {
		FailedScanners []guard.FailedScanner `json:"failed_scanners"`
	} `json:"guard"`
	Done bool `json:"done"`
}

// BlockBody renders the structured rejection for a BlockedError. The same
// JSON serves as a non-streaming 451 body and, with done set, as the single
// synthetic chunk terminating a blocked stream.
func BlockBody(blocked *BlockedError, done bool) []byte {
	var payload blockPayload
	payload.Error.Type = blocked.ErrorType()
	payload.Error.Message = blocked.Message
	payload.Guard.FailedScanners = blocked.Verdict.FailedScanners()
	payload.Done = done

	data, err := json.Marshal(payload)
	if err != nil {
		// The payload is marshal-safe by construction.
		return []byte(`{"error":{"type":"blocked","message":"content blocked"},"done":true}`)
	}
	return data
}
