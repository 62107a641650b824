//go:build freebsd || netbsd || openbsd || dragonfly

package socket

import "golang.org/x/sys/unix"

const sendFlags = unix.MSG_NOSIGNAL

// Push flushes any corked response data to the wire.
// Responses are assembled under TCP_NOPUSH; clearing it releases the tail
// segment, mimicking the Linux TCP_CORK behavior.
func Push(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NOPUSH, 0)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NOPUSH, 1)
}
