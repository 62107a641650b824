package socket

import (
	"time"

	"golang.org/x/sys/unix"
)

// Tuning holds the per-connection socket options applied at accept time.
type Tuning struct {
	// NoDelay disables Nagle's algorithm. Responses are corked explicitly,
	// so delaying small writes only adds latency.
	NoDelay bool

	// SendTimeout bounds how long a blocking write may stall. Zero means
	// no limit.
	SendTimeout time.Duration
}

// DefaultTuning returns the options used by the daemon unless overridden.
func DefaultTuning() Tuning {
	return Tuning{NoDelay: true}
}

// Apply sets the tuning options on an accepted descriptor.
// Option failures are ignored: a missing knob never justifies dropping
// the connection.
func (t Tuning) Apply(fd int) {
	if t.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if t.SendTimeout > 0 {
		tv := unix.NsecToTimeval(t.SendTimeout.Nanoseconds())
		_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	}

	applyPlatformOptions(fd)
}
