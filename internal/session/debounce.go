package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer coalesces rapid triggers: only the last function passed to
// Trigger runs, once the input has been quiet for the interval.
type Debouncer struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64 // bumped on every Trigger/Cancel; stale timer callbacks compare against it
	stopped bool
}

// NewDebouncer creates a Debouncer driven by clock.
func NewDebouncer(clock clockwork.Clock, interval time.Duration) *Debouncer {
	return &Debouncer{clock: clock, interval: interval}
}

// Trigger schedules fn to run after the quiet interval, discarding any call
// still pending. It is a no-op after Stop.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.cancelLocked()
	gen := d.gen

	d.timer = d.clock.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		fn()
	})
}

// Cancel discards the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending call and ignores all later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
