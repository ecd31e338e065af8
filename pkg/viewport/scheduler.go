package viewport

import (
	"sync"
	"time"
)

// Scheduler defers work. A coalescing scheduler may drop an earlier fn when a
// later one is scheduled before the first has run; the controller only ever
// needs the latest.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Immediate returns a scheduler that runs fn synchronously on the caller's
// goroutine. Useful for one-shot reads where nothing needs coalescing.
func Immediate() Scheduler {
	return SchedulerFunc(func(fn func()) { fn() })
}

// DebounceScheduler runs only the last fn scheduled within a quiet period.
type DebounceScheduler struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// Debounce returns a trailing-edge debouncer with the given quiet period.
func Debounce(delay time.Duration) *DebounceScheduler {
	return &DebounceScheduler{delay: delay}
}

// Schedule (re)arms the timer to run fn after the quiet period.
func (d *DebounceScheduler) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop discards any pending fn.
func (d *DebounceScheduler) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
