package admission

import (
	"fmt"
	"time"
)

// QueueFullError is returned by Acquire when the wait queue is already at
// capacity. The caller was rejected immediately without waiting.
type QueueFullError struct {
	// MaxQueue is the configured queue capacity that was hit.
	MaxQueue int
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("admission queue full (%d waiting requests)", e.MaxQueue)
}

// QueueTimeoutError is returned by Acquire when no slot became available
// within the queue timeout.
type QueueTimeoutError struct {
	// Timeout is the configured maximum wait.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *QueueTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for an admission slot", e.Timeout)
}
