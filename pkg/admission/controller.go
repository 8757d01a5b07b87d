package admission

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// AutoParallel is the sentinel max_parallel value that derives the slot
// count from available hardware concurrency at startup.
const AutoParallel = 0

// Config configures an admission Controller.
type Config struct {
	// MaxParallel is the maximum number of concurrently held slots.
	// AutoParallel (0) derives it from runtime.GOMAXPROCS.
	MaxParallel int

	// MaxQueue is the maximum number of requests allowed to wait for a
	// slot. The (MaxQueue+1)-th simultaneous waiter is rejected
	// immediately.
	MaxQueue int

	// QueueTimeout bounds how long a single request may wait in queue.
	QueueTimeout time.Duration
}

// Controller bounds concurrent upstream calls with a counting semaphore and
// a bounded, approximately-FIFO wait queue.
//
// The semaphore is a buffered channel: sends acquire, receives release.
// Channel sends park waiters in FIFO-ish order and cooperate with the Go
// scheduler, so no OS thread blocks while a request waits for a slot.
type Controller struct {
	sem          chan struct{}
	maxParallel  int
	maxQueue     int
	queueTimeout time.Duration

	// mu protects waiting; held only for the counter update, never
	// across the blocking wait itself.
	mu      sync.Mutex
	waiting int
}

// Slot is an ownership token for one admitted upstream call. It is held
// exclusively by the request that acquired it and released exactly once.
type Slot struct {
	release sync.Once
	c       *Controller
}

// Release returns the slot to the pool. It is idempotent: extra calls are
// no-ops, so pairing an explicit error-path release with a defer is safe.
func (s *Slot) Release() {
	s.release.Do(func() {
		<-s.c.sem
	})
}

// NewController creates an admission controller.
//
// cfg.MaxParallel may be AutoParallel to size the pool from hardware
// concurrency. A zero QueueTimeout waits indefinitely (bounded only by the
// caller's context).
func NewController(cfg Config) *Controller {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}

	return &Controller{
		sem:          make(chan struct{}, maxParallel),
		maxParallel:  maxParallel,
		maxQueue:     cfg.MaxQueue,
		queueTimeout: cfg.QueueTimeout,
	}
}

// Acquire obtains an admission slot, blocking until one is available.
//
// Failure modes, all terminal:
//   - *QueueFullError if MaxQueue requests are already waiting (returned
//     immediately, no wait performed)
//   - *QueueTimeoutError if no slot freed up within QueueTimeout
//   - ctx.Err() if the caller's context ended first
//
// On success the caller owns the returned Slot and must Release it on every
// path, typically via defer.
func (c *Controller) Acquire(ctx context.Context) (*Slot, error) {
	// Fast path: a slot is free right now.
	select {
	case c.sem <- struct{}{}:
		return &Slot{c: c}, nil
	default:
	}

	// Slow path: join the wait queue if there is room.
	c.mu.Lock()
	if c.waiting >= c.maxQueue {
		c.mu.Unlock()
		return nil, &QueueFullError{MaxQueue: c.maxQueue}
	}
	c.waiting++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.waiting--
		c.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if c.queueTimeout > 0 {
		timer := time.NewTimer(c.queueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case c.sem <- struct{}{}:
		return &Slot{c: c}, nil
	case <-timeout:
		return nil, &QueueTimeoutError{Timeout: c.queueTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats is a point-in-time snapshot of controller occupancy.
type Stats struct {
	Active      int `json:"active"`
	Waiting     int `json:"waiting"`
	MaxParallel int `json:"max_parallel"`
	MaxQueue    int `json:"max_queue"`
}

// Stats returns the current active and waiting counts.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	waiting := c.waiting
	c.mu.Unlock()

	return Stats{
		Active:      len(c.sem),
		Waiting:     waiting,
		MaxParallel: c.maxParallel,
		MaxQueue:    c.maxQueue,
	}
}
