//go:build darwin || netbsd || dragonfly

package socket

import "golang.org/x/sys/unix"

const SupportsDualStack = true

// Accepts are not balanced in-kernel on these platforms, so the daemon
// creates a single listener served by one dispatcher.
const SupportsReusePort = false

func setReusePort(fd int) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

func applyListenerOptions(fd int) {}
