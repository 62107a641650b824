//go:build openbsd

package socket

import "golang.org/x/sys/unix"

// OpenBSD rejects dual-stack sockets outright; callers must pick IPv4 or
// IPv6 explicitly.
const SupportsDualStack = false

const SupportsReusePort = false

func setReusePort(fd int) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

func applyListenerOptions(fd int) {}
