package http11

import "time"

var monoBase = time.Now()

// MonotonicNow returns milliseconds from an arbitrary process-local origin.
// Deadlines shared between the dispatcher and workers are expressed on
// this clock.
func MonotonicNow() int64 {
	return time.Since(monoBase).Milliseconds()
}
