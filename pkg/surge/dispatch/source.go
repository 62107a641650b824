// Package dispatch runs the per-listener event loop: accepting
// connections, feeding bytes to the HTTP state machine, handing ready
// requests to workers and reaping idle or expired connections.
//
// The platform demultiplexers (epoll on Linux, kqueue on the BSDs and
// macOS, poll elsewhere) sit behind the Source interface. Only the event
// source is shared across platforms; each concrete implementation keeps
// its own registration semantics.
package dispatch

// Event is one readiness notification from a Source. FD identifies the
// descriptor; HUP is set when the kernel reports the descriptor dead
// (used to detect listener shutdown).
type Event struct {
	FD  int
	HUP bool
}

// Source is the platform event demultiplexer owned by one dispatcher.
// All methods except Wake must be called from the dispatcher goroutine;
// Wake may be called from workers to interrupt a pending Wait.
type Source interface {
	// AddListener registers the listening socket for accept readiness.
	AddListener(fd int) error

	// AddClient registers a connection for read readiness.
	AddClient(fd int) error

	// DisableClient stops readiness reports while a worker owns the
	// connection.
	DisableClient(fd int)

	// EnableClient reinstates readiness reports after a worker hands the
	// connection back.
	EnableClient(fd int)

	// RemoveClient unregisters a connection before it is closed.
	RemoveClient(fd int)

	// Wake interrupts Wait from another goroutine. The wakeup is
	// reported as an event carrying WakeFD.
	Wake()

	// WakeFD returns the descriptor that identifies wakeup events.
	WakeFD() int

	// Wait blocks until readiness events arrive or the timeout (in
	// milliseconds, negative meaning forever) expires. Returns the
	// number of events stored in events.
	Wait(events []Event, timeout int64) (int, error)

	// Close releases the demultiplexer and the wakeup descriptors.
	Close()
}
