package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsTask(t *testing.T) {
	p := New(2)
	defer p.Stop()

	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestSubmitWithFutureReturnsResult(t *testing.T) {
	p := New(2)
	defer p.Stop()

	f := SubmitWithFuture(p, func() (int, error) { return 42, nil })
	v, err := f.Wait()
	if err != nil || v != 42 {
		t.Fatalf("Wait = %d, %v, want 42, nil", v, err)
	}
}

func TestSubmitWithFutureRecoversPanic(t *testing.T) {
	p := New(2)
	defer p.Stop()

	f := SubmitWithFuture(p, func() (int, error) { panic("boom") })
	_, err := f.Wait()
	if err == nil {
		t.Fatal("expected an error from a panicking task")
	}
}

func TestPauseStopsDispatch(t *testing.T) {
	p := New(1)
	defer p.Stop()

	p.Pause()
	ran := make(chan struct{})
	p.Submit(func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("task ran while pool was paused")
	case <-time.After(50 * time.Millisecond):
	}

	p.Unpause()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran after Unpause")
	}
}

func TestWaitIdleBlocksUntilQueueDrains(t *testing.T) {
	p := New(1)
	defer p.Stop()

	var n atomic.Int64
	for i := 0; i < 5; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.WaitIdle()
	if got := n.Load(); got != 5 {
		t.Fatalf("n = %d, want 5 after WaitIdle", got)
	}
}

func TestResetReplacesWorkersButKeepsQueue(t *testing.T) {
	p := New(1)
	defer p.Stop()

	blocked := make(chan struct{})
	release := make(chan struct{})
	p.Submit(func() {
		close(blocked)
		<-release
	})
	<-blocked

	queued := make(chan struct{})
	p.Submit(func() { close(queued) })
	close(release)

	p.Reset(2)
	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("task queued before Reset never ran")
	}

	done := make(chan struct{})
	p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not accept new work after Reset")
	}
}

func TestStopJoinsAllWorkers(t *testing.T) {
	p := New(3)
	var n atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.Stop()
	if got := n.Load(); got != 10 {
		t.Fatalf("n = %d, want 10 (Stop must drain the queue before returning)", got)
	}
}
