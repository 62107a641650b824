//go:build freebsd

package socket

import "golang.org/x/sys/unix"

const SupportsDualStack = true

const SupportsReusePort = true

// SO_REUSEPORT_LB distributes accepts across listeners, unlike the plain
// FreeBSD SO_REUSEPORT which only relaxes bind checks.
func setReusePort(fd int) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT_LB, 1)
}

func applyListenerOptions(fd int) {}
