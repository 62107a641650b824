//go:build linux

package socket

import "golang.org/x/sys/unix"

const sendFlags = unix.MSG_NOSIGNAL | unix.MSG_MORE

// Push flushes any corked response data to the wire.
// Writes carry MSG_MORE so the kernel coalesces the status line, headers
// and body into full segments; clearing TCP_CORK releases the tail.
func Push(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_CORK, 0)
}
