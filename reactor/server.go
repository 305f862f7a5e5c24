// Package reactor is the server (component H): owns the listen socket,
// the readiness notifier, the fd→connection table, the handler
// registry, the worker pool and the idle-expiry timer, and drives the
// single-threaded event loop described in spec §4.H. Grounded on
// s00inx-goserver/server/engine/epoll.go's accept loop and
// server/engine/pool.go's ONESHOT re-arm discipline, generalized into
// the full reader/writer/idle-expiry/graceful-stop state machine the
// teacher's own StartEpoll never implements.
package reactor

import (
	"time"

	"github.com/nikandfor/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"

	"github.com/kfcemployee/goserver/conn"
	"github.com/kfcemployee/goserver/httpparse"
	"github.com/kfcemployee/goserver/notify"
	"github.com/kfcemployee/goserver/obslog"
	"github.com/kfcemployee/goserver/respool"
	"github.com/kfcemployee/goserver/router"
	"github.com/kfcemployee/goserver/timer"
	"github.com/kfcemployee/goserver/workerpool"
)

// readBufSize is the initial capacity handed to each pooled read buffer;
// conn.Conn grows its own copy past this via ensureReadRoom, so the pool
// only ever sees this fixed size back on Close.
const readBufSize = 10 * 1024

// maxPooledConns bounds the read-buffer pool's allocations. It matches
// the notifier's 4096-entry minimum event buffer rather than any hard
// connection limit; Get returning respool.ErrExhausted past this point
// just means the accept is refused instead of growing the pool further.
const maxPooledConns = 4096

// stopSentinel marks the self-pipe fd used to wake the reactor out of a
// blocking Wait(-1) on Stop; it is a distinct userdata value from the
// listen fd's nil and from any *conn.Conn.
type stopSentinel struct{}

// ErrAlreadyRunning is returned by Run when the server is already
// looping.
var ErrAlreadyRunning = errors.New("reactor: already running")

// ErrNotListening is returned by Run when Listen hasn't been called.
var ErrNotListening = errors.New("reactor: Listen must be called before Run")

// ErrNotRunning is returned by Stop when the server isn't running.
var ErrNotRunning = errors.New("reactor: not running")

// Server is the event-loop reactor described by §4.H.
type Server struct {
	registry *router.Registry

	listenFd int
	backlog  int
	listenET bool
	clientET bool

	idleTimeout time.Duration
	workerCount int

	notifier *notify.Notifier
	conns    *xsync.MapOf[int, *conn.Conn]
	bufPool  *respool.Pool[[]byte]
	pool     *workerpool.Pool
	timer    *timer.Timer
	stopFd   int
	log      *obslog.Logger

	running bool
	doneCh  chan struct{}
}

// New returns a Server with default backlog, worker count, and a 60s
// idle timeout. Register handlers, call Listen, then Run.
func New() *Server {
	bufPool, _ := respool.New(0, maxPooledConns,
		func() ([]byte, error) { return make([]byte, readBufSize), nil },
		nil)
	return &Server{
		registry:    router.New(),
		listenFd:    -1,
		backlog:     notify.DefaultBacklog,
		idleTimeout: 60 * time.Second,
		conns:       xsync.NewMapOf[int, *conn.Conn](),
		bufPool:     bufPool,
	}
}

// SetTriggerMode configures edge- vs. level-triggered delivery
// independently for the listen socket and client sockets, per §4.H.
func (s *Server) SetTriggerMode(listenET, clientET bool) {
	s.listenET = listenET
	s.clientET = clientET
}

// SetIdleTimeout overrides the default per-connection idle expiry.
func (s *Server) SetIdleTimeout(d time.Duration) { s.idleTimeout = d }

// SetWorkerCount overrides the worker pool size used once Run starts.
// <= 0 uses runtime.NumCPU().
func (s *Server) SetWorkerCount(n int) { s.workerCount = n }

// SetBacklog overrides the listen backlog (default 6, per §6).
func (s *Server) SetBacklog(n int) { s.backlog = n }

// SetLogger wires an obslog.Logger into the reactor for handler-panic and
// accept-failure diagnostics. Without one, those events are silent.
func (s *Server) SetLogger(log *obslog.Logger) { s.log = log }

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Errorf(format, args...)
	}
}

// Handle registers handler for pattern. Returns ErrRegistryFrozen once
// Run has started.
func (s *Server) Handle(pattern string, handler router.Handler) error {
	return s.registry.Handle(pattern, handler)
}

// HandleDefault registers the fallback handler for unmatched URIs.
func (s *Server) HandleDefault(handler router.Handler) error {
	return s.registry.HandleDefault(handler)
}

// Listen creates, binds, and starts listening on a non-blocking TCP
// socket at address:port. address == "" binds INADDR_ANY.
func (s *Server) Listen(address string, port int) error {
	fd, err := notify.Listen(address, port, s.backlog)
	if err != nil {
		return errors.Wrap(err, "reactor: listen")
	}
	s.listenFd = fd
	return nil
}

// ActiveConnections returns the number of connections currently tracked
// in the connection table.
func (s *Server) ActiveConnections() int {
	return s.conns.Size()
}

// Run registers the listen socket with the notifier, freezes the
// handler registry, starts the worker pool and timer, and blocks
// running the reactor loop until Stop is called.
func (s *Server) Run() error {
	if s.running {
		return ErrAlreadyRunning
	}
	if s.listenFd < 0 {
		return ErrNotListening
	}

	notifier, err := notify.New()
	if err != nil {
		return errors.Wrap(err, "reactor: create notifier")
	}
	s.notifier = notifier

	listenInterest := notify.Read
	if s.listenET {
		listenInterest |= notify.EdgeTriggered
	}
	if !s.notifier.Add(s.listenFd, listenInterest, nil) {
		return errors.New("reactor: failed to register listen fd")
	}

	stopFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return errors.Wrap(err, "reactor: create stop eventfd")
	}
	s.stopFd = stopFd
	if !s.notifier.Add(s.stopFd, notify.Read, stopSentinel{}) {
		return errors.New("reactor: failed to register stop fd")
	}

	s.registry.Freeze()
	s.pool = workerpool.New(s.workerCount)
	s.timer = timer.New()
	s.timer.Start()

	s.running = true
	s.doneCh = make(chan struct{})
	defer close(s.doneCh)

	for s.running {
		events, err := s.notifier.Wait(-1)
		if err != nil {
			return errors.Wrap(err, "reactor: wait")
		}
		for _, ev := range events {
			s.dispatch(ev)
		}
	}

	s.shutdown()
	return nil
}

// Stop flips the running flag, wakes the reactor via the stop eventfd,
// drains the worker pool, stops the timer, and closes every tracked
// connection. It blocks until Run has returned.
func (s *Server) Stop() error {
	if !s.running {
		return ErrNotRunning
	}
	s.running = false
	one := make([]byte, 8)
	one[0] = 1
	unix.Write(s.stopFd, one)
	<-s.doneCh
	return nil
}

func (s *Server) shutdown() {
	s.pool.WaitIdle()
	s.pool.Stop()
	s.timer.Stop()

	s.conns.Range(func(fd int, c *conn.Conn) bool {
		c.Close()
		s.conns.Delete(fd)
		return true
	})

	s.notifier.Close()
	notify.Close(s.listenFd)
	notify.Close(s.stopFd)
	s.bufPool.Close()
}

func (s *Server) dispatch(ev notify.Event) {
	switch ud := ev.UserData.(type) {
	case nil:
		s.acceptLoop()
	case stopSentinel:
		// drained by Stop via Wait's next wake; nothing else to do.
	case *conn.Conn:
		s.dispatchClient(ud, ev.Events)
	}
}

func (s *Server) acceptLoop() {
	for {
		fd, err := notify.Accept(s.listenFd)
		if err != nil {
			if !notify.IsAgain(err) {
				// listen socket itself is broken; stop accepting but
				// keep the reactor alive for existing connections.
			}
			return
		}

		lease, err := s.bufPool.Get()
		if err != nil {
			// pool exhausted: refuse the connection rather than fall
			// back to an unpooled allocation.
			s.logf("reactor: accept refused, buffer pool exhausted: %v", err)
			notify.Close(fd)
			continue
		}
		c := conn.NewFromPool(fd, lease)
		s.conns.Store(fd, c)

		interest := notify.Read | notify.Hangup | notify.Error | notify.OneShot
		if s.clientET {
			interest |= notify.EdgeTriggered
		}
		if !s.notifier.Add(fd, interest, c) {
			c.Close()
			s.conns.Delete(fd)
			continue
		}
		s.armIdle(fd)

		if !s.listenET {
			return
		}
	}
}

func (s *Server) dispatchClient(c *conn.Conn, events notify.Interest) {
	if events&(notify.Hangup|notify.Error) != 0 {
		s.closeConn(c.Fd)
		return
	}
	if events&notify.Write != 0 {
		s.submitWriter(c)
		return
	}
	if events&notify.Read != 0 {
		s.submitReader(c)
	}
}

func (s *Server) submitReader(c *conn.Conn) {
	fd := c.Fd
	s.pool.Submit(func() {
		state, req, err := c.ParseFromFD(s.clientET)
		if err != nil || state.Terminal() {
			s.closeConn(fd)
			return
		}

		s.resetIdle(fd)

		if state != httpparse.Complete {
			s.rearm(fd, notify.Read)
			return
		}

		ctx := &router.Context{Request: req, Response: c.Resp}
		h, ok := s.registry.Match(req.URI)
		if !ok {
			ctx.SetStatus(404)
		} else if !s.invokeHandler(h, ctx, fd) {
			return
		}
		c.MakeResponse()
		s.rearm(fd, notify.Write)
	})
}

// invokeHandler runs h, recovering a panic that escapes it. Per spec.md
// §7 a handler panic is logged and its connection closed immediately
// rather than left to the worker pool's generic recover() and the idle
// timer. Reports false if it recovered a panic, so the caller skips
// writing a response on an already-closed connection.
func (s *Server) invokeHandler(h router.Handler, ctx *router.Context, fd int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("reactor: handler panic on fd %d: %v", fd, r)
			s.closeConn(fd)
			ok = false
		}
	}()
	h(ctx)
	return true
}

func (s *Server) submitWriter(c *conn.Conn) {
	fd := c.Fd
	s.pool.Submit(func() {
		_, done, retry, err := c.WriteToFD()
		if err != nil {
			s.closeConn(fd)
			return
		}
		if retry {
			s.rearm(fd, notify.Write)
			return
		}
		if !done {
			s.rearm(fd, notify.Write)
			return
		}

		s.resetIdle(fd)
		if c.KeepAlive() {
			c.Clear()
			s.rearm(fd, notify.Read)
		} else {
			s.closeConn(fd)
		}
	})
}

func (s *Server) rearm(fd int, io notify.Interest) {
	c, ok := s.conns.Load(fd)
	if !ok {
		return
	}
	interest := io | notify.Hangup | notify.Error | notify.OneShot
	if s.clientET {
		interest |= notify.EdgeTriggered
	}
	if !s.notifier.Mod(fd, interest, c) {
		s.closeConn(fd)
	}
}

func (s *Server) closeConn(fd int) {
	c, ok := s.conns.LoadAndDelete(fd)
	if !ok {
		return
	}
	s.notifier.Del(fd)
	s.timer.Cancel(uint64(fd))
	c.Close()
}

func (s *Server) armIdle(fd int) {
	s.timer.Add(uint64(fd), func() { s.closeConn(fd) }, s.idleTimeout, 1, 0)
}

// resetIdle cancels and re-arms the idle-expiry task for fd, matching
// §4.H's "armed on accept and on every successful read/write" rule.
// Directly closing the fd from the timer callback (rather than a
// shutdown-then-wait-for-HUP dance) is deliberate: a client fd sits
// ONESHOT-disarmed between events, so there is no active epoll interest
// left for a shutdown(2) call to surface as a HUP against.
func (s *Server) resetIdle(fd int) {
	s.timer.Cancel(uint64(fd))
	s.armIdle(fd)
}
