package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerIgnoresStaleTimerCallback(t *testing.T) {
	origAfterFunc := afterFunc
	t.Cleanup(func() { afterFunc = origAfterFunc })

	var callbacks []func()
	afterFunc = func(_ time.Duration, f func()) *time.Timer {
		callbacks = append(callbacks, f)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}

	var called atomic.Int32
	d := New(time.Second, func() {
		called.Add(1)
	})

	d.Trigger()
	d.Trigger()

	if len(callbacks) != 2 {
		t.Fatalf("expected 2 scheduled callbacks, got %d", len(callbacks))
	}

	callbacks[0]()
	callbacks[1]()

	if got := called.Load(); got != 1 {
		t.Fatalf("expected only latest callback to run, got %d calls", got)
	}
}

func TestDebouncerStopIgnoresPendingTimerCallback(t *testing.T) {
	origAfterFunc := afterFunc
	t.Cleanup(func() { afterFunc = origAfterFunc })

	var callback func()
	afterFunc = func(_ time.Duration, f func()) *time.Timer {
		callback = f
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}

	var called atomic.Int32
	d := New(time.Second, func() {
		called.Add(1)
	})

	d.Trigger()
	d.Stop()

	if callback == nil {
		t.Fatalf("expected a scheduled callback")
	}
	callback()

	if got := called.Load(); got != 0 {
		t.Fatalf("expected callback to be ignored after stop, got %d calls", got)
	}
}

func TestDebouncerTriggerOnce(t *testing.T) {
	var count int32
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
		close(done)
	})
	d.Trigger()
	d.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected one invocation, got %d", count)
	}
}

func TestDebouncerStop(t *testing.T) {
	var count int32
	d := New(20*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&count) != 0 {
		t.Fatalf("expected no invocations after stop, got %d", count)
	}
}

func TestDebouncerRearmsAfterStop(t *testing.T) {
	fired := make(chan struct{}, 2)
	d := New(5*time.Millisecond, func() { fired <- struct{}{} })
	d.Trigger()
	d.Stop()
	d.Trigger()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire after being re-armed")
	}
}

// The callback may trigger the debouncer again, as a refresh that observes
// new changes does.
func TestDebouncerCallbackCanTrigger(t *testing.T) {
	var count atomic.Int32
	done := make(chan struct{})
	var d *Debouncer
	d = New(5*time.Millisecond, func() {
		if count.Add(1) == 1 {
			d.Trigger()
			return
		}
		close(done)
	})
	d.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback re-trigger did not fire")
	}
}
