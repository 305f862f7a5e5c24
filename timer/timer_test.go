package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddRejectsInvalidParams(t *testing.T) {
	tm := New()
	if err := tm.Add(1, nil, 0, 1, time.Second); err != ErrInvalidParam {
		t.Fatalf("nil callback: err = %v, want ErrInvalidParam", err)
	}
	if err := tm.Add(1, func() {}, -time.Second, 1, time.Second); err != ErrInvalidParam {
		t.Fatalf("negative delay: err = %v, want ErrInvalidParam", err)
	}
	if err := tm.Add(1, func() {}, 0, 0, time.Second); err != ErrInvalidParam {
		t.Fatalf("times == 0: err = %v, want ErrInvalidParam", err)
	}
	if err := tm.Add(1, func() {}, 0, -2, time.Second); err != ErrInvalidParam {
		t.Fatalf("times < -1: err = %v, want ErrInvalidParam", err)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	tm := New()
	if err := tm.Add(1, func() {}, 0, 1, time.Second); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := tm.Add(1, func() {}, 0, 1, time.Second); err != ErrDuplicateID {
		t.Fatalf("second Add: err = %v, want ErrDuplicateID", err)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	tm := New()
	if !tm.Start() {
		t.Fatal("first Start returned false")
	}
	if tm.Start() {
		t.Fatal("second Start returned true, want false")
	}
	if !tm.Stop() {
		t.Fatal("first Stop returned false")
	}
	if tm.Stop() {
		t.Fatal("second Stop returned true, want false")
	}
}

func TestFiniteTimesInvokedExactlyK(t *testing.T) {
	tm := New()
	var n atomic.Int64
	const k = 5
	done := make(chan struct{})
	if err := tm.Add(1, func() {
		if n.Add(1) == k {
			close(done)
		}
	}, 0, k, 5*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tm.Start()
	defer tm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback invoked %d times, want %d", n.Load(), k)
	}

	// Give any stray extra fire a chance to land before asserting the
	// count never exceeds k.
	time.Sleep(20 * time.Millisecond)
	if got := n.Load(); got != k {
		t.Fatalf("callback invoked %d times, want exactly %d", got, k)
	}
}

func TestCancelDuringExecutionIsDeferred(t *testing.T) {
	tm := New()
	inCallback := make(chan struct{})
	release := make(chan struct{})
	var fires atomic.Int64

	if err := tm.Add(1, func() {
		fires.Add(1)
		close(inCallback)
		<-release
	}, 0, -1, time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tm.Start()
	defer tm.Stop()

	<-inCallback
	if err := tm.Cancel(1); err != nil {
		t.Fatalf("Cancel during execution: %v", err)
	}
	close(release)

	time.Sleep(50 * time.Millisecond)
	if err := tm.Cancel(1); err != ErrNotFound {
		t.Fatalf("Cancel after completion: err = %v, want ErrNotFound (task should be gone)", err)
	}
	if got := fires.Load(); got != 1 {
		t.Fatalf("fires = %d, want exactly 1 (cancel should have taken effect before a second run)", got)
	}
}

func TestUpdateDuringExecutionIsDeferred(t *testing.T) {
	tm := New()
	inCallback := make(chan struct{})
	release := make(chan struct{})

	if err := tm.Add(1, func() {
		close(inCallback)
		<-release
	}, 0, 1, time.Hour); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tm.Start()
	defer tm.Stop()

	<-inCallback
	applied := make(chan struct{})
	if err := tm.Update(1, func(tk *task) {
		tk.interval = time.Hour * 2
		close(applied)
	}); err != nil {
		t.Fatalf("Update during execution: %v", err)
	}

	select {
	case <-applied:
		t.Fatal("mutator ran before callback returned")
	default:
	}
	close(release)
	<-applied
}

func TestCancelUnknownID(t *testing.T) {
	tm := New()
	if err := tm.Cancel(99); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSteadyModeCatchesUp(t *testing.T) {
	tm := New()
	tm.SetSteady(true)
	var fires atomic.Int64
	start := time.Now()

	if err := tm.Add(1, func() {
		fires.Add(1)
	}, 0, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tm.Start()
	defer tm.Stop()

	time.Sleep(200 * time.Millisecond)
	if got := fires.Load(); got != 3 {
		t.Fatalf("fires = %d, want 3 (finite times must not exceed its budget once caught up)", got)
	}
	_ = start
}

func TestClearRestartsIfRunning(t *testing.T) {
	tm := New()
	var fires atomic.Int64
	tm.Add(1, func() { fires.Add(1) }, 0, -1, 5*time.Millisecond)
	tm.Start()

	time.Sleep(30 * time.Millisecond)
	tm.Clear()

	if err := tm.Cancel(1); err != ErrNotFound {
		t.Fatalf("Cancel after Clear: err = %v, want ErrNotFound", err)
	}

	// New task added after Clear should still run since the scheduler
	// restarted.
	done := make(chan struct{})
	if err := tm.Add(2, func() { close(done) }, 0, 1, time.Millisecond); err != nil {
		t.Fatalf("Add after Clear: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task added after Clear never ran")
	}
	tm.Stop()
}

func BenchmarkAddCancel(b *testing.B) {
	tm := New()
	tm.Start()
	defer tm.Stop()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		id := uint64(i) + 1
		tm.Add(id, func() {}, time.Hour, 1, time.Hour)
		tm.Cancel(id)
	}
}
