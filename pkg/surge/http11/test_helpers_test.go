package http11

import (
	"io"
	"os"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

// newConnectedIO wires a state machine to one end of a socketpair so
// response bytes can be inspected from the peer side. Requests are fed
// through the in-memory path (feed); only the response direction uses
// the descriptor.
func newConnectedIO(t *testing.T, settings *Settings) (*IO, *os.File) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	if settings == nil {
		settings = DefaultSettings()
	}

	c := NewIO(settings)
	c.Init(fds[0], MonotonicNow(), &unix.SockaddrUnix{Name: "@test"})

	peer := os.NewFile(uintptr(fds[1]), "peer")

	t.Cleanup(func() {
		c.Close()
		peer.Close()
	})

	return c, peer
}

// collectResponse closes the server side and drains everything the peer
// can still read.
func collectResponse(t *testing.T, c *IO, peer *os.File) string {
	t.Helper()

	c.Close()

	data, err := io.ReadAll(peer)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return string(data)
}

// splitResponse separates the header block from the body.
func splitResponse(t *testing.T, response string) (string, string) {
	t.Helper()

	head, body, found := strings.Cut(response, "\r\n\r\n")
	if !found {
		t.Fatalf("response has no header terminator: %q", response)
	}
	return head, body
}
