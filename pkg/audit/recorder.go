package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder writes block events to a Store asynchronously. Record never
// blocks the request path: events queue into a buffered channel drained by
// a single writer goroutine, and are dropped (counted) when the buffer is
// full.
type Recorder struct {
	store   *Store
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
	logger  *slog.Logger
}

// NewRecorder starts a recorder over store. bufferSize <= 0 defaults to
// 1000 queued events.
func NewRecorder(store *Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	r := &Recorder{
		store:  store,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "audit"),
	}

	r.wg.Add(1)
	go r.drain()

	return r
}

// Record queues one block event. Never blocks; on a full buffer or after
// Close the event is dropped and counted. The events channel is never
// closed, so a late Record from an in-flight stream cannot panic.
func (r *Recorder) Record(event Event) {
	select {
	case <-r.done:
		r.dropped.Add(1)
		return
	default:
	}

	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to a full buffer or recorded
// after shutdown.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting events, flushes the queue, and waits for the
// writer to finish.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
	return nil
}

func (r *Recorder) drain() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Flush whatever queued before shutdown.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.RecordBlock(ctx, event); err != nil {
		r.logger.Warn("failed to record block event", "error", err)
	}
}
