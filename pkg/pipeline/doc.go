// Package pipeline orchestrates the streaming guard pipeline: input scan,
// admission, upstream forwarding, incremental output scanning, and
// mid-stream cancellation.
//
// # State Machine
//
// Every request moves through the same states:
//
//	SCANNING_INPUT -> FORWARDING -> STREAMING -> {COMPLETED | BLOCKED}
//
// Checks run cheapest-and-most-certain first. The input scan (cache-checked)
// happens before an admission slot is acquired or the backend is contacted,
// so a request that will be rejected anyway costs neither a slot nor
// backend work.
//
// # Streaming Policy
//
// The default policy is stream-first, verify opportunistically: each
// upstream chunk is forwarded downstream immediately and its text appended
// to the per-stream accumulator. A scan pass runs once the accumulator has
// grown by the configured cadence since the last pass, and unconditionally
// before the final marker is forwarded, so the complete output is always
// scanned at least once (above the minimum-length floor).
//
// On a block: forwarding stops, exactly one synthetic block chunk is
// emitted downstream, the upstream connection is cancelled immediately so
// the backend stops producing unused tokens, and the stream terminates
// cleanly. At most one block decision is ever surfaced per stream.
//
// # Scanner Faults
//
// A scanner that errors (as opposed to one that blocks) is a transient
// fault, resolved by the fail-open/fail-closed policy configured per
// direction. Fail-closed turns the fault into a block carrying a synthetic
// "guard_error" scanner entry; fail-open logs and lets the content through.
// The fault is never left unresolved.
//
// # Slot Discipline
//
// The admission slot acquired before forwarding is released by defer on
// every exit path: completion, block, upstream failure, client disconnect.
package pipeline
