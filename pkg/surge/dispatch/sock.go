package dispatch

import (
	"github.com/yourusername/surge/pkg/surge/http11"
)

// Sock is the per-connection record owned by exactly one dispatcher. It
// pairs the descriptor with its HTTP state machine and the bookkeeping
// flags the dispatcher loop uses between passes.
type Sock struct {
	fd int

	// process marks the socket readable since the last pass.
	process bool

	// worker is set while a worker goroutine owns the connection. The
	// dispatcher does not read from a worker-owned socket; it only
	// enforces the deadline.
	worker bool

	client *http11.IO
}

// Client returns the connection state machine.
func (s *Sock) Client() *http11.IO {
	return s.client
}

// slabCap bounds the dispatcher's free list. Surplus parked sockets are
// dropped for the garbage collector instead of pooled.
const slabCap = 64

// slab is a fixed-capacity ring of parked Sock records, owned by one
// dispatcher goroutine and therefore unlocked.
type slab struct {
	ring [slabCap]*Sock
	head int
	size int

	settings *http11.Settings
}

// acquire returns a parked record or builds a fresh one.
func (f *slab) acquire() *Sock {
	if f.size == 0 {
		metricSlabMiss()
		return &Sock{fd: -1, client: http11.NewIO(f.settings)}
	}

	metricSlabHit()
	s := f.ring[f.head]
	f.ring[f.head] = nil
	f.head = (f.head + 1) % slabCap
	f.size--

	return s
}

// park closes the socket and returns the record to the ring, dropping it
// when the ring is full.
func (f *slab) park(s *Sock) {
	s.client.Close()
	s.fd = -1
	s.process = false
	s.worker = false
	s.client.Rearm(-1)

	if f.size == slabCap {
		return
	}

	tail := (f.head + f.size) % slabCap
	f.ring[tail] = s
	f.size++
}
