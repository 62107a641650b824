package dispatch

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/yourusername/surge/pkg/surge/http11"
	"github.com/yourusername/surge/pkg/surge/socket"
	"github.com/yourusername/surge/pkg/surge/task"
)

// acceptBatch caps how many connections one listener wakeup accepts.
const acceptBatch = 8

// WorkersPerDispatcher is the number of task-pool workers serving one
// dispatcher's connections.
const WorkersPerDispatcher = 4

// Dispatcher runs the event loop for one listener: it owns the platform
// event source, the socket slab and the active set. Ready requests are
// handed to the worker pool; finished workers hand connections back
// through the rearm queue and the wakeup descriptor.
type Dispatcher struct {
	settings *http11.Settings
	handler  http11.Handler

	listener   int
	pool       *task.Pool
	workerBase int

	tuning      socket.Tuning
	stopTimeout time.Duration

	source Source

	stop atomic.Bool

	rearmMu sync.Mutex
	rearmQ  []rearmToken
}

type rearmToken struct {
	sock      *Sock
	keepalive bool
}

// New builds a dispatcher for one listener. workerBase is the first
// worker index this dispatcher round-robins over; it uses
// WorkersPerDispatcher consecutive indices.
func New(settings *http11.Settings, handler http11.Handler, listener int,
	pool *task.Pool, workerBase int, tuning socket.Tuning, stopTimeout time.Duration) (*Dispatcher, error) {

	source, err := newPlatformSource()
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		settings:    settings,
		handler:     handler,
		listener:    listener,
		pool:        pool,
		workerBase:  workerBase,
		tuning:      tuning,
		stopTimeout: stopTimeout,
		source:      source,
	}, nil
}

func (d *Dispatcher) logger() *logrus.Logger {
	if d.settings.Logger != nil {
		return d.settings.Logger
	}
	return logrus.StandardLogger()
}

// Run executes the event loop until the listener is shut down (nil) or a
// dispatcher-fatal error occurs. Per-connection failures never end the
// loop; they close one connection.
func (d *Dispatcher) Run() error {
	var active []*Sock
	byFD := make(map[int]*Sock)

	free := slab{settings: d.settings}

	defer func() {
		// Give in-flight workers a grace period, then cut their sockets
		// out from under them
		if !d.pool.Wait(100 * time.Millisecond) {
			d.logger().Infof("Waiting up to %.1f sec before shutting down clients", d.stopTimeout.Seconds())

			if !d.pool.Wait(d.stopTimeout) {
				for _, s := range active {
					socket.Shutdown(s.fd, unix.SHUT_RDWR)
				}
				d.pool.Wait(d.stopTimeout)
			}
		}

		for _, s := range active {
			s.client.Close()
		}

		d.source.Close()
	}()

	if err := d.source.AddListener(d.listener); err != nil {
		return err
	}

	events := make([]Event, 2+acceptBatch)
	nEvents := 0
	nextWorker := 0

	for {
		if d.stop.Load() {
			return nil
		}

		now := http11.MonotonicNow()
		accepts := false

		for i := 0; i < nEvents; i++ {
			ev := events[i]

			switch ev.FD {
			case d.listener:
				if ev.HUP {
					return nil
				}
				accepts = true

			case d.source.WakeFD():
				// Tokens are drained below

			default:
				if s := byFD[ev.FD]; s != nil {
					s.process = true
				}
			}
		}

		// Connections handed back by finished workers
		for _, tok := range d.takeRearms() {
			s := tok.sock
			s.worker = false

			if tok.keepalive {
				d.source.EnableClient(s.fd)
				// Bytes may have arrived while the socket was disabled
				s.process = true
			} else {
				d.source.RemoveClient(s.fd)
				delete(byFD, s.fd)
				free.park(s)
				active = removeSock(active, s)
			}
		}

		if accepts {
			for i := 0; i < acceptBatch; i++ {
				fd, sa, err := socket.Accept(d.listener)
				if err != nil {
					if socket.IsWouldBlock(err) {
						break
					}
					if err == unix.EINVAL {
						// Listener shut down
						return nil
					}

					return fmt.Errorf("dispatch: failed to accept client: %w", err)
				}

				d.tuning.Apply(fd)

				s := free.acquire()
				s.fd = fd
				s.client.Init(fd, now, sa)

				if err := d.source.AddClient(fd); err != nil {
					d.logger().WithField("error", err).Error("Failed to watch client socket")
					free.park(s)
					continue
				}

				// TCP_DEFER_ACCEPT means data may already be queued
				s.process = true

				active = append(active, s)
				byFD[fd] = s

				metricAccepted()
			}
		}

		keep := 0
		timeout := int64(math.MaxInt64)

		for i := 0; i < len(active); i++ {
			s := active[i]
			active[keep] = s
			keep++

			status := http11.StatusBusy

			if s.process && !s.worker {
				s.process = false
				status = d.readAndParse(s)
			}

			switch status {
			case http11.StatusBusy:
				// Keep polling

			case http11.StatusReady:
				client := s.client

				if err := client.InitAddress(); err != nil {
					client.Request.KeepAlive = false
					client.SendError(400, "")

					d.source.RemoveClient(s.fd)
					delete(byFD, s.fd)
					free.park(s)
					keep--
					continue
				}

				// Cap the total connection lifetime
				if now >= client.SocketStart()+d.settings.KeepAliveTime.Milliseconds() {
					client.Request.KeepAlive = false
				}

				s.worker = true
				d.source.DisableClient(s.fd)

				workerIdx := d.workerBase + nextWorker
				nextWorker = (nextWorker + 1) % WorkersPerDispatcher

				metricRequest()
				d.pool.Spawn(workerIdx, func() { d.runWorker(s) })

			case http11.StatusClose:
				if err := s.client.ParseError(); err != nil {
					d.rejectParse(s.client)
				}

				d.source.RemoveClient(s.fd)
				delete(byFD, s.fd)
				free.park(s)
				keep--
				continue
			}

			// Deadline enforcement covers worker-owned sockets too:
			// shutting the socket down makes the worker's reads and
			// writes fail, and the socket is reaped on a later pass.
			// Idle connections are additionally capped at the total
			// keep-alive lifetime.
			deadline := s.client.Deadline()
			if !s.worker {
				lifetime := s.client.SocketStart() + d.settings.KeepAliveTime.Milliseconds()
				deadline = minInt64(deadline, lifetime)
			}

			delay := deadline - now
			if delay <= 0 {
				metricTimeout()
				socket.Shutdown(s.fd, unix.SHUT_RDWR)
				s.process = true
				timeout = minInt64(timeout, 1000)
				continue
			}
			timeout = minInt64(timeout, delay)
		}
		active = active[:keep]

		needed := 2 + len(active)
		if cap(events) < needed {
			events = make([]Event, needed)
		} else {
			events = events[:needed]
		}

		waitFor := timeout
		if waitFor == math.MaxInt64 {
			waitFor = -1
		}

		n, err := d.source.Wait(events, waitFor)
		if err != nil {
			// Dispatcher-fatal: propagate to the daemon
			return err
		}
		nEvents = n
	}
}

// readAndParse drains the socket without blocking and feeds the parser.
// Reads continue until the kernel runs dry or a full request is parsed,
// which keeps edge-triggered sources honest.
func (d *Dispatcher) readAndParse(s *Sock) http11.ParseStatus {
	client := s.client

	for {
		buf := client.ReadBuffer()

		n, err := socket.ReadNonblock(s.fd, buf)
		if err != nil {
			if socket.IsWouldBlock(err) {
				return http11.StatusBusy
			}

			if !socket.IsDisconnect(err) && client.IsBusy() {
				d.logger().WithField("error", err).Warn("Client connection failed")
			}

			metricDisconnected()
			return http11.StatusClose
		}

		if n == 0 {
			if client.IsBusy() {
				d.logger().Debug("Client closed connection with unfinished request")
			}

			metricDisconnected()
			return http11.StatusClose
		}

		client.CommitRead(n)

		if status := client.ParseRequest(); status != http11.StatusBusy {
			return status
		}
	}
}

// rejectParse answers a parser rejection before the connection closes.
func (d *Dispatcher) rejectParse(client *http11.IO) {
	metricParseFailed()

	status := 400
	switch client.ParseError() {
	case http11.ErrRequestTooLarge:
		status = 413
	case http11.ErrUnknownMethod:
		status = 405
	case http11.ErrURLTooLong:
		status = 414
	}

	client.Request.KeepAlive = false
	client.SendError(status, "")
}

// runWorker executes on a task-pool worker: it runs the user handler,
// recycles the connection, and keeps going while complete pipelined
// requests are already buffered. The connection is handed back to the
// dispatcher through the rearm queue.
func (d *Dispatcher) runWorker(s *Sock) {
	client := s.client
	keepalive := false

	for {
		d.handler(&client.Request, client)

		if !client.Rearm(http11.MonotonicNow()) {
			keepalive = false
			break
		}

		status := client.ParseRequest()
		if status == http11.StatusBusy {
			keepalive = true
			break
		}
		if status == http11.StatusClose {
			d.rejectParse(client)
			keepalive = false
			break
		}

		// Another pipelined request is already complete
		if err := client.InitAddress(); err != nil {
			client.Request.KeepAlive = false
			client.SendError(400, "")
			keepalive = false
			break
		}

		if http11.MonotonicNow() >= client.SocketStart()+d.settings.KeepAliveTime.Milliseconds() {
			client.Request.KeepAlive = false
		}

		metricRequest()
	}

	d.postRearm(s, keepalive)
}

// Shutdown asks the event loop to exit. Half-closing the listener is not
// portable (some platforms refuse shutdown on a listening socket), so the
// daemon pairs it with this explicit signal.
func (d *Dispatcher) Shutdown() {
	d.stop.Store(true)
	d.source.Wake()
}

func (d *Dispatcher) postRearm(s *Sock, keepalive bool) {
	d.rearmMu.Lock()
	d.rearmQ = append(d.rearmQ, rearmToken{sock: s, keepalive: keepalive})
	d.rearmMu.Unlock()

	d.source.Wake()
}

func (d *Dispatcher) takeRearms() []rearmToken {
	d.rearmMu.Lock()
	tokens := d.rearmQ
	d.rearmQ = nil
	d.rearmMu.Unlock()

	return tokens
}

func removeSock(active []*Sock, target *Sock) []*Sock {
	for i, s := range active {
		if s == target {
			active[i] = active[len(active)-1]
			return active[:len(active)-1]
		}
	}
	return active
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
