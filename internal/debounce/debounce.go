package debounce

import (
	"sync"
	"time"
)

// afterFunc is swapped in tests to control timer callbacks.
var afterFunc = time.AfterFunc

// Debouncer runs fn once after Trigger stops being called for delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
	// gen identifies the latest scheduled callback; a timer that fires after
	// being superseded or stopped sees a different value and does nothing.
	gen uint64
}

func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = afterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()
	fn()
}

// Stop cancels a pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
