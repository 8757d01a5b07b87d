// Package admission bounds and queues concurrent calls to the upstream
// backend.
//
// # Overview
//
// LLM inference is slow and stateful; an unbounded proxy would happily open
// hundreds of concurrent generations and drown the backend. The admission
// Controller caps in-flight upstream calls at max_parallel and lets a
// bounded number of additional requests wait in line:
//
//	slot, err := controller.Acquire(ctx)
//	if err != nil {
//	    // *QueueFullError or *QueueTimeoutError - reject the request
//	}
//	defer slot.Release()
//	// ... call upstream ...
//
// # Queueing Semantics
//
// Acquire first tries for a free slot without waiting. If none is free and
// max_queue waiters already exist, it fails immediately with QueueFullError;
// no time is spent waiting. Otherwise the caller joins the queue and blocks
// until a slot frees up, queue_timeout elapses (QueueTimeoutError), or its
// context is cancelled. Waiters are served in approximately FIFO order.
//
// # Slot Discipline
//
// A Slot is an ownership token. Release is idempotent (sync.Once), so the
// usual defer pattern is safe even when an error path also releases
// explicitly. Every acquired slot must be released exactly once; the defer
// above satisfies that on every path.
//
// Both failure modes are terminal, client-visible rejections. The controller
// never retries internally; queue-full maps naturally to HTTP 429 and
// queue-timeout to HTTP 503.
package admission
