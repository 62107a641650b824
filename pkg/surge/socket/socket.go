// Package socket wraps the raw descriptor plumbing used by the server core:
// listener creation, batched accepts, direct writes, zero-copy file
// transmission and per-platform TCP tuning.
//
// Everything here works on integer file descriptors. The dispatcher and the
// per-connection state machine own descriptors directly instead of going
// through net.Conn, so reads and writes map to single syscalls.
package socket

import (
	"errors"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Type selects the address family of a listening socket.
type Type int

const (
	// Dual binds an IPv6 socket accepting IPv4-mapped peers as well.
	Dual Type = iota

	// IPv4 binds a plain AF_INET socket.
	IPv4

	// IPv6 binds an AF_INET6 socket with V6ONLY set.
	IPv6

	// Unix binds a SOCK_STREAM Unix-domain socket.
	Unix
)

// String returns the configuration-file spelling of the socket type.
func (t Type) String() string {
	switch t {
	case Dual:
		return "Dual"
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	case Unix:
		return "Unix"
	default:
		return "unknown"
	}
}

// ParseType maps a configuration value to a socket type.
// Matching is case-insensitive; "IPStack" legacy values are accepted.
func ParseType(s string) (Type, error) {
	switch {
	case equalFold(s, "dual"):
		return Dual, nil
	case equalFold(s, "ipv4"), equalFold(s, "v4"):
		return IPv4, nil
	case equalFold(s, "ipv6"), equalFold(s, "v6"):
		return IPv6, nil
	case equalFold(s, "unix"):
		return Unix, nil
	}
	return Dual, errors.New("socket: unknown socket type " + strconv.Quote(s))
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ListenBacklog is the backlog passed to listen(2).
const ListenBacklog = 200

// AddrString renders the peer address of an accepted socket in printable
// form: the IP literal for TCP peers, "unix" for Unix-domain peers.
func AddrString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(sa.Addr[:]).String()
	case *unix.SockaddrInet6:
		ip := net.IP(sa.Addr[:])
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	case *unix.SockaddrUnix:
		return "unix"
	default:
		return ""
	}
}

// Shutdown half- or full-closes a descriptor, ignoring errors.
// Concurrent reads and writes on the descriptor fail afterwards, which is
// how the dispatcher cancels a connection owned by a worker.
func Shutdown(fd int, how int) {
	_ = unix.Shutdown(fd, how)
}

// Close closes a descriptor, ignoring errors.
func Close(fd int) {
	if fd >= 0 {
		_ = unix.Close(fd)
	}
}

// SetNonblock toggles O_NONBLOCK on a descriptor.
func SetNonblock(fd int, enable bool) error {
	return unix.SetNonblock(fd, enable)
}

// IsWouldBlock reports whether err is the EAGAIN/EWOULDBLOCK pair.
func IsWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// IsDisconnect reports whether err means the peer went away. Such errors
// are expected during normal operation and are never logged at error level.
func IsDisconnect(err error) bool {
	return err == unix.EPIPE || err == unix.ECONNRESET
}
