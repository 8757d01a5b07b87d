package pipeline

import (
	"fmt"
	"strings"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// BlockedError is the terminal result of a guard block. It carries the
// verdict so callers can render the structured rejection (HTTP 451 body or
// synthetic stream chunk).
type BlockedError struct {
	// Direction tells whether the prompt or the generation was blocked.
	Direction guard.Direction

	// Verdict is the scan result that caused the block.
	Verdict *guard.Verdict

	// Message is the human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return e.Message
}

// ErrorType returns the machine-readable rejection type for client
// responses: "input_blocked" or "output_blocked".
func (e *BlockedError) ErrorType() string {
	return string(e.Direction) + "_blocked"
}

// newBlockedError builds a BlockedError with a formatted message naming
// the failed scanners.
func newBlockedError(direction guard.Direction, verdict *guard.Verdict) *BlockedError {
	return &BlockedError{
		Direction: direction,
		Verdict:   verdict,
		Message:   formatBlockMessage(direction, verdict),
	}
}

// formatBlockMessage renders the human-readable block explanation, e.g.
// "Request blocked by content safety policy: toxicity (hate speech)".
func formatBlockMessage(direction guard.Direction, verdict *guard.Verdict) string {
	subject := "Request"
	if direction == guard.DirectionOutput {
		subject = "Response"
	}

	failed := verdict.FailedScanners()
	if len(failed) == 0 {
		return fmt.Sprintf("%s blocked by content safety policy", subject)
	}

	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		if f.Reason != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Scanner, f.Reason))
		} else {
			parts = append(parts, f.Scanner)
		}
	}

	return fmt.Sprintf("%s blocked by content safety policy: %s", subject, strings.Join(parts, ", "))
}

// guardErrorVerdict synthesizes the verdict used when a scanner fault is
// resolved fail-closed: the block is attributed to a "guard_error" scanner
// so clients can tell policy blocks from scanner unavailability.
func guardErrorVerdict(err error) *guard.Verdict {
	return &guard.Verdict{
		Allowed: false,
		Scanners: map[string]guard.ScannerResult{
			"guard_error": {
				Passed: false,
				Reason: fmt.Sprintf("content scanner unavailable: %v", err),
				Score:  1.0,
			},
		},
	}
}
