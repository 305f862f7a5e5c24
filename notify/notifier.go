// Package notify is a thin abstraction over epoll-style edge-triggered
// readiness notification, per spec.md §4.A. Grounded on the epoll call
// shape in the teacher's server/engine/epoll.go, generalized from a
// single-purpose accept loop into a reusable, thread-safe type, and built
// on golang.org/x/sys/unix instead of the bare syscall package — the
// ecosystem norm observed repeatedly across the retrieval pack.
package notify

import (
	"sync"

	"github.com/nikandfor/errors"
	"golang.org/x/sys/unix"
)

const (
	minEventBuffer = 4096
	growFactor     = 1.5
	shrinkFactor   = 0.5
)

// Event is one readiness notification: either the raw fd (when userdata
// wasn't used) or an opaque key handed to Add, plus the interests that
// fired.
type Event struct {
	Fd     int
	UserData interface{}
	Events Interest
}

// Notifier wraps one epoll instance. Add/Mod/Del are safe to call from any
// goroutine concurrently with a blocked Wait, matching §4.A's contract.
type Notifier struct {
	epfd int

	mu        sync.Mutex
	count     int
	userdata  map[int]interface{}
	eventBuf  []unix.EpollEvent
}

// New creates a new epoll instance with an event buffer no smaller than
// minEventBuffer.
func New() (*Notifier, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll create")
	}
	return &Notifier{
		epfd:     epfd,
		userdata: make(map[int]interface{}),
		eventBuf: make([]unix.EpollEvent, minEventBuffer),
	}, nil
}

// Add registers fd with the given interests and an opaque userdata value
// resolved back to the caller on Wait. It returns false if the fd is
// already registered or the underlying epoll_ctl call fails.
func (n *Notifier) Add(fd int, interests Interest, userdata interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ev := unix.EpollEvent{Events: interests.epollBits(), Fd: int32(fd)}
	if err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return false
	}
	n.userdata[fd] = userdata
	n.count++
	n.growLocked()
	return true
}

// Mod updates the interests registered for fd — used to re-arm a one-shot
// fd after the task that drained its last event finishes.
func (n *Notifier) Mod(fd int, interests Interest, userdata interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ev := unix.EpollEvent{Events: interests.epollBits(), Fd: int32(fd)}
	if err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return false
	}
	n.userdata[fd] = userdata
	return true
}

// Del unregisters fd. It is not an error to delete an fd that was never
// added or was already closed out from under epoll.
func (n *Notifier) Del(fd int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_ = unix.EpollCtl(n.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if _, ok := n.userdata[fd]; ok {
		delete(n.userdata, fd)
		n.count--
		n.shrinkLocked()
		return true
	}
	return false
}

// growLocked doubles-ish the event buffer (×1.5) once registrations exceed
// its capacity. Caller holds n.mu.
func (n *Notifier) growLocked() {
	if n.count <= len(n.eventBuf) {
		return
	}
	newSize := int(float64(len(n.eventBuf)) * growFactor)
	if newSize <= len(n.eventBuf) {
		newSize = len(n.eventBuf) + 1
	}
	n.eventBuf = make([]unix.EpollEvent, newSize)
}

// shrinkLocked halves the event buffer once occupancy falls under half its
// capacity, but never below minEventBuffer. Caller holds n.mu.
func (n *Notifier) shrinkLocked() {
	if len(n.eventBuf) <= minEventBuffer {
		return
	}
	if float64(n.count) >= float64(len(n.eventBuf))*shrinkFactor {
		return
	}
	newSize := int(float64(len(n.eventBuf)) * shrinkFactor)
	if newSize < minEventBuffer {
		newSize = minEventBuffer
	}
	n.eventBuf = make([]unix.EpollEvent, newSize)
}

// Wait blocks until at least one event is ready (or timeoutMs elapses;
// -1 blocks forever) and returns the ready events. The returned slice is
// only valid until the next call to Wait.
func (n *Notifier) Wait(timeoutMs int) ([]Event, error) {
	n.mu.Lock()
	buf := n.eventBuf
	n.mu.Unlock()

	count, err := unix.EpollWait(n.epfd, buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "epoll wait")
	}

	out := make([]Event, 0, count)
	n.mu.Lock()
	for i := 0; i < count; i++ {
		fd := int(buf[i].Fd)
		ud := n.userdata[fd]
		out = append(out, Event{
			Fd:       fd,
			UserData: ud,
			Events:   interestFromEpollBits(buf[i].Events),
		})
	}
	n.mu.Unlock()
	return out, nil
}

// Close releases the underlying epoll fd.
func (n *Notifier) Close() error {
	return unix.Close(n.epfd)
}
