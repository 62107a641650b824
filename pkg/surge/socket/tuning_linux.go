//go:build linux

package socket

import "golang.org/x/sys/unix"

// applyPlatformOptions sets Linux-specific connection options.
func applyPlatformOptions(fd int) {
	// Retransmit unacknowledged data for at most 10 seconds before the
	// connection is declared dead. Zombie connections otherwise linger
	// for minutes.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, 10000)
}

// SetQuickAck re-enables immediate ACKs on a descriptor. The option is not
// persistent and is reset by the kernel after each ACK.
func SetQuickAck(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
}
