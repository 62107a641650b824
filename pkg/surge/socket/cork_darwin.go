//go:build darwin

package socket

import "golang.org/x/sys/unix"

// SIGPIPE is suppressed per-socket with SO_NOSIGPIPE at accept time.
const sendFlags = 0

// Push flushes any corked response data to the wire.
func Push(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NOPUSH, 0)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NOPUSH, 1)
}
