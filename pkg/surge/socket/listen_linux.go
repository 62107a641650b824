//go:build linux

package socket

import "golang.org/x/sys/unix"

// SupportsDualStack reports whether Dual sockets work on this platform.
const SupportsDualStack = true

// SupportsReusePort reports whether the kernel balances accepts across
// listeners bound to the same port. When true, the daemon creates one
// listener per dispatcher.
const SupportsReusePort = true

func setReusePort(fd int) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

// applyListenerOptions sets Linux listener tuning.
// TCP_DEFER_ACCEPT only wakes the dispatcher once request data arrives,
// which cuts one context switch per connection.
func applyListenerOptions(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5)
}
