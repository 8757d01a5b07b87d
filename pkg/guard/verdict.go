package guard

import (
	"context"
	"sort"
)

// Direction identifies which side of the proxy a scan applies to.
type Direction string

const (
	// DirectionInput scans the client prompt before it reaches the backend.
	DirectionInput Direction = "input"

	// DirectionOutput scans generated text on its way back to the client.
	DirectionOutput Direction = "output"
)

// ScannerResult is the outcome of a single named scanner within a scan pass.
type ScannerResult struct {
	// Passed indicates whether this scanner accepted the content.
	Passed bool `json:"passed"`

	// Reason explains the decision (empty when passed).
	Reason string `json:"reason,omitempty"`

	// Score is the scanner's confidence in its decision (0.0 to 1.0).
	Score float64 `json:"score"`
}

// Verdict is the result of a safety scan. It is treated as an immutable
// value once produced: cached verdicts are returned by reference and must
// never be mutated by callers.
type Verdict struct {
	// Allowed is the aggregate decision across all scanners.
	Allowed bool `json:"allowed"`

	// Scanners maps scanner name to its individual result.
	Scanners map[string]ScannerResult `json:"scanners,omitempty"`

	// SanitizedText is the scanner-rewritten text, if any scanner
	// performed redaction or anonymization. Empty means unchanged.
	SanitizedText string `json:"sanitized_text,omitempty"`
}

// Allow returns a verdict that permits the content with no scanner detail.
// Useful as a neutral verdict when scanning is skipped (e.g. output shorter
// than the minimum scan length).
func Allow() *Verdict {
	return &Verdict{Allowed: true}
}

// FailedScanner describes one scanner that rejected content, in the shape
// surfaced to clients in block responses.
type FailedScanner struct {
	Scanner string  `json:"scanner"`
	Reason  string  `json:"reason"`
	Score   float64 `json:"score"`
}

// FailedScanners extracts the scanners that rejected the content, sorted by
// name for stable client-visible output.
func (v *Verdict) FailedScanners() []FailedScanner {
	if v == nil || len(v.Scanners) == 0 {
		return nil
	}

	var failed []FailedScanner
	for name, result := range v.Scanners {
		if !result.Passed {
			failed = append(failed, FailedScanner{
				Scanner: name,
				Reason:  result.Reason,
				Score:   result.Score,
			})
		}
	}

	sort.Slice(failed, func(i, j int) bool {
		return failed[i].Scanner < failed[j].Scanner
	})

	return failed
}

// Scanner is the interface to the external content-safety capability.
//
// Implementations may be slow (remote ML inference); both methods must honor
// context cancellation. A non-nil error indicates a scanner fault (the
// scanner could not produce a verdict at all), which the pipeline resolves
// via its fail-open/fail-closed policy. A blocked verdict is NOT an error.
type Scanner interface {
	// ScanInput scans a client prompt before forwarding.
	ScanInput(ctx context.Context, text string) (*Verdict, error)

	// ScanOutput scans generated text. promptContext carries the original
	// prompt so context-sensitive scanners can judge the pair.
	ScanOutput(ctx context.Context, text, promptContext string) (*Verdict, error)
}
