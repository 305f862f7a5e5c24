package timer

import "time"

// task mirrors original_source/src/timer/timer.hpp's Task: a keyed,
// repeatable callback with a next run time maintained by the owning
// heap. times == 0 means cancelled/invalid; -1 means infinite.
type task struct {
	id         uint64
	callback   func()
	startDelay time.Duration
	times      int
	interval   time.Duration
	nextRun    time.Time

	heapIndex int
	executing bool

	pendingMutators []func(*task)
	pendingCancel   bool
}

func (t *task) valid() bool { return t.times != 0 }

func (t *task) reduceTimes() {
	if t.times > 0 {
		t.times--
	}
}

func (t *task) resetNextRun(now time.Time) {
	t.nextRun = now.Add(t.startDelay)
}

// taskHeap is a container/heap.Interface over *task ordered by nextRun,
// the Go equivalent of timer.hpp's PTaskOrder min-heap comparator.
type taskHeap []*task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].nextRun.Before(h[j].nextRun) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.heapIndex = -1
	return t
}
