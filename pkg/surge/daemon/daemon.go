package daemon

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/yourusername/surge/pkg/surge/dispatch"
	"github.com/yourusername/surge/pkg/surge/http11"
	"github.com/yourusername/surge/pkg/surge/socket"
	"github.com/yourusername/surge/pkg/surge/task"
)

// Daemon owns the listeners, the dispatchers and the worker pool.
//
// Lifecycle: Bind validates the configuration and creates the listening
// sockets, Start launches the event loops, Stop tears everything down.
// Stop is safe to call multiple times; it also releases the listeners of
// a daemon that was bound but never started.
type Daemon struct {
	config   Config
	settings *http11.Settings

	listeners   []int
	dispatchers []*dispatch.Dispatcher
	pool        *task.Pool

	wg sync.WaitGroup

	mu       sync.Mutex
	bound    bool
	started  bool
	stopped  bool
	fatalErr error
}

// New returns an unbound daemon with the given configuration.
func New(config Config) *Daemon {
	return &Daemon{config: config}
}

func (d *Daemon) logger() *logrus.Logger {
	if d.config.Logger != nil {
		return d.config.Logger
	}
	return logrus.StandardLogger()
}

// Bind validates the configuration and creates the listening sockets.
// On platforms with in-kernel accept balancing it creates two listeners
// per core, all bound to the same port, so every dispatcher gets its own
// accept queue.
func (d *Daemon) Bind() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bound {
		return fmt.Errorf("daemon: already bound")
	}

	if err := d.config.Validate(); err != nil {
		return err
	}

	count := 1
	if d.config.SockType != socket.Unix && socket.SupportsReusePort {
		count = 2 * runtime.NumCPU()
	}

	for i := 0; i < count; i++ {
		fd, err := socket.Listen(d.config.SockType, d.config.Port, d.config.UnixPath)
		if err != nil {
			for _, lfd := range d.listeners {
				socket.Close(lfd)
			}
			d.listeners = nil
			return err
		}

		d.listeners = append(d.listeners, fd)
	}

	d.bound = true

	if d.config.SockType == socket.Unix {
		d.logger().Infof("Listening on socket '%s' (Unix stack)", d.config.UnixPath)
	} else {
		d.logger().Infof("Listening on http://localhost:%d/ (%s stack)", d.config.Port, d.config.SockType)
	}

	return nil
}

// Start launches one dispatcher per listener plus the worker pool and
// begins serving requests through handler.
func (d *Daemon) Start(handler http11.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("daemon: handler must be set")
	}
	if !d.bound {
		return fmt.Errorf("daemon: Bind must run before Start")
	}
	if d.started {
		return fmt.Errorf("daemon: already started")
	}

	if d.config.ClientAddress == http11.AddrSocket {
		d.logger().Info("You may want to set HTTP.ClientAddress to X-Forwarded-For or X-Real-IP " +
			"if you run this behind a reverse proxy that sets one of these headers.")
	}

	d.settings = d.config.settings()
	d.pool = task.NewPool(1 + dispatch.WorkersPerDispatcher*len(d.listeners))

	tuning := socket.DefaultTuning()
	tuning.SendTimeout = d.config.SendTimeout

	for i, listener := range d.listeners {
		workerBase := 1 + dispatch.WorkersPerDispatcher*i

		dsp, err := dispatch.New(d.settings, handler, listener, d.pool, workerBase, tuning, d.config.StopTimeout)
		if err != nil {
			d.stopLocked()
			return err
		}

		d.dispatchers = append(d.dispatchers, dsp)
	}

	for _, dsp := range d.dispatchers {
		dsp := dsp

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()

			if err := dsp.Run(); err != nil {
				d.logger().WithField("error", err).Error("Dispatcher failed")

				d.mu.Lock()
				if d.fatalErr == nil {
					d.fatalErr = err
				}
				d.mu.Unlock()
			}
		}()
	}

	d.started = true
	return nil
}

// Stop shuts the listeners down, waits for in-flight handlers within the
// configured grace period, force-closes whatever remains and releases
// every descriptor. It returns the first dispatcher-fatal error seen, if
// any.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.stopped {
		err := d.fatalErr
		d.mu.Unlock()
		return err
	}
	err := d.stopLocked()
	d.mu.Unlock()
	return err
}

// stopLocked runs the teardown with d.mu held, releasing it around the
// dispatcher wait.
func (d *Daemon) stopLocked() error {
	d.stopped = true

	for _, listener := range d.listeners {
		socket.Shutdown(listener, unix.SHUT_RD)
	}
	for _, dsp := range d.dispatchers {
		dsp.Shutdown()
	}

	d.mu.Unlock()
	d.wg.Wait()
	d.mu.Lock()

	for _, listener := range d.listeners {
		socket.Close(listener)
	}
	d.listeners = nil
	d.dispatchers = nil
	d.bound = false
	d.started = false

	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}

	return d.fatalErr
}
