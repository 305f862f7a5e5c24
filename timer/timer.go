// Package timer schedules keyed, repeatable callbacks over a steady
// monotonic clock, per spec.md §4.D. Ported from
// original_source/src/timer/timer.hpp and timer.cpp (a keyed min-heap plus
// a background scheduler thread); unlike the original, add() takes the key
// from the caller instead of generating one, since the server keys idle-
// expiry tasks by connection fd.
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nikandfor/errors"
)

var (
	// ErrDuplicateID is returned by Add when id is already scheduled.
	ErrDuplicateID = errors.New("timer: id already present")
	// ErrInvalidParam covers negative delays/intervals and times == 0.
	ErrInvalidParam = errors.New("timer: invalid parameter")
	// ErrNotFound is returned by Update/Cancel for an unknown id.
	ErrNotFound = errors.New("timer: task not found")
)

// Timer is a background-thread scheduler over a keyed min-heap of tasks.
type Timer struct {
	mu      sync.Mutex
	tasks   map[uint64]*task
	h       taskHeap
	running bool
	steady  bool

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a stopped Timer. Call Start to begin running scheduled tasks.
func New() *Timer {
	return &Timer{
		tasks: make(map[uint64]*task),
		wake:  make(chan struct{}, 1),
	}
}

// SetSteady toggles catch-up scheduling: in steady mode the next run is
// prevNextRun + interval (cron-like catch-up); otherwise it's now +
// interval, so a slow callback delays the following run instead of
// bunching up retries.
func (t *Timer) SetSteady(steady bool) {
	t.mu.Lock()
	t.steady = steady
	t.mu.Unlock()
}

// Add schedules callback to first run after startDelay (relative to Start,
// or to now if the timer is already running), repeating times times (-1
// for infinite) every interval. It rejects a duplicate id, a nil callback,
// negative delay/interval, or times == 0.
func (t *Timer) Add(id uint64, callback func(), startDelay time.Duration, times int, interval time.Duration) error {
	if callback == nil || startDelay < 0 || interval < 0 || times == 0 || times < -1 {
		return ErrInvalidParam
	}

	t.mu.Lock()
	if _, ok := t.tasks[id]; ok {
		t.mu.Unlock()
		return ErrDuplicateID
	}

	tk := &task{
		id:         id,
		callback:   callback,
		startDelay: startDelay,
		times:      times,
		interval:   interval,
	}
	t.tasks[id] = tk

	if t.running {
		tk.resetNextRun(time.Now())
		heap.Push(&t.h, tk)
	} else {
		// nextRun is finalized when Start() resets every task relative
		// to the instant it begins running.
		tk.heapIndex = -1
	}
	t.mu.Unlock()
	t.signalWake()
	return nil
}

// Update applies mutator to the task identified by id. If the task is
// currently executing, the mutation is deferred until the callback
// returns, per §4.D.
func (t *Timer) Update(id uint64, mutator func(*task)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if tk.executing {
		tk.pendingMutators = append(tk.pendingMutators, mutator)
		return nil
	}
	mutator(tk)
	if tk.heapIndex >= 0 {
		heap.Fix(&t.h, tk.heapIndex)
	}
	return nil
}

// Cancel removes the task identified by id. If it is currently executing,
// it is marked for removal after the callback returns instead of being
// removed immediately.
func (t *Timer) Cancel(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if tk.executing {
		tk.pendingCancel = true
		return nil
	}
	delete(t.tasks, id)
	if tk.heapIndex >= 0 {
		heap.Remove(&t.h, tk.heapIndex)
	}
	return nil
}

// Start resets every task's next_run_time relative to now and starts the
// background scheduler goroutine. Returns false if already running.
func (t *Timer) Start() bool {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return false
	}
	now := time.Now()
	t.h = t.h[:0]
	for _, tk := range t.tasks {
		tk.resetNextRun(now)
		heap.Push(&t.h, tk)
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.mu.Unlock()

	go t.worker(t.stopCh, t.doneCh)
	return true
}

// Stop halts the scheduler goroutine and joins it. Returns false if
// already stopped. Tasks are retained and will resume (with their
// remaining `times`) on the next Start.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	t.running = false
	stopCh, doneCh := t.stopCh, t.doneCh
	t.mu.Unlock()

	close(stopCh)
	<-doneCh
	return true
}

// Clear removes every task, restarting the scheduler if it was running.
func (t *Timer) Clear() {
	wasRunning := t.Stop()
	t.mu.Lock()
	t.tasks = make(map[uint64]*task)
	t.h = nil
	t.mu.Unlock()
	if wasRunning {
		t.Start()
	}
}

func (t *Timer) signalWake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Timer) worker(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		t.mu.Lock()
		if len(t.h) == 0 {
			t.mu.Unlock()
			select {
			case <-stopCh:
				return
			case <-t.wake:
			}
			continue
		}
		next := t.h[0]
		now := time.Now()
		wait := next.nextRun.Sub(now)
		if wait <= 0 {
			t.runOneLocked(now)
			t.mu.Unlock()
			continue
		}
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-t.wake:
			timer.Stop()
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

// runOneLocked pops the earliest task, runs its callback with the timer's
// lock released, then reschedules or discards it. Caller holds t.mu on
// entry and must still hold it (it is re-acquired here) on return.
func (t *Timer) runOneLocked(now time.Time) {
	tk := heap.Pop(&t.h).(*task)

	if t.steady {
		tk.nextRun = tk.nextRun.Add(tk.interval)
	} else {
		tk.nextRun = now.Add(tk.interval)
	}
	tk.reduceTimes()
	tk.executing = true

	t.mu.Unlock()
	func() {
		defer func() { recover() }() // §4.D: callback exceptions are caught and ignored
		tk.callback()
	}()
	t.mu.Lock()

	tk.executing = false
	pending := tk.pendingMutators
	tk.pendingMutators = nil
	for _, m := range pending {
		m(tk)
	}
	cancelled := tk.pendingCancel
	tk.pendingCancel = false

	if cancelled || !tk.valid() {
		delete(t.tasks, tk.id)
		return
	}
	heap.Push(&t.h, tk)
}
