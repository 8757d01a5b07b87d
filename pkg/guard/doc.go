// Package guard defines the content-safety scanning boundary of GuardGate.
//
// # Overview
//
// The guard package contains the types shared by every component that talks
// about safety decisions:
//
//   - Scanner: the interface to the external, ML-backed content scanners
//   - Verdict: the immutable outcome of a scan (allowed/blocked + detail)
//   - Cache keys: stable hashes binding a decision to its scan input
//
// The actual scanners (toxicity, prompt-injection, PII, secrets detection)
// live outside this repository. GuardGate treats them as an opaque, possibly
// slow capability reached through the Scanner interface, which keeps test
// doubles trivial:
//
//	type stubScanner struct{}
//
//	func (stubScanner) ScanInput(ctx context.Context, text string) (*guard.Verdict, error) {
//	    return guard.Allow(), nil
//	}
//
// # Cache Keys
//
// Decisions are memoized by the guard decision cache (see the cache
// subpackage). Keys are derived from a SHA-256 hash of the scan direction,
// the whitespace-normalized text, and the active scanner-configuration
// version. Bumping the config version therefore invalidates every prior
// decision automatically; no manual cache flush is needed when the scanner
// set changes.
package guard
