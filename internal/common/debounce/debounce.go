// internal/common/debounce/debounce.go

// Package debounce coalesces bursts of calls into a single deferred call.
package debounce

import (
	"sync"
	"time"
)

// State is the debouncer's slot state.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Debouncer holds a single pending slot. Scheduling replaces whatever is
// pending, so only the last call's function ever runs.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	state State
	timer *time.Timer
	fn    func()
	gen   uint64
}

// New creates a debouncer with a default delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule arms the slot with fn using the default delay.
func (d *Debouncer) Schedule(fn func()) {
	d.ScheduleAfter(d.delay, fn)
}

// ScheduleAfter cancels any pending call and arms the slot with fn.
func (d *Debouncer) ScheduleAfter(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.fn = fn
	d.state = Pending
	d.timer = time.AfterFunc(delay, func() { d.fire(gen) })
}

// Flush runs the pending call now, on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return false
	}
	fn := d.fn
	d.stopLocked()
	d.mu.Unlock()

	fn()
	return true
}

// Cancel drops the pending call. It reports whether anything was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPending := d.state == Pending
	d.stopLocked()
	return wasPending
}

// State returns the current slot state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a newer Schedule, Flush or Cancel already owns the slot
	if gen != d.gen || d.state != Pending {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.state = Idle
	d.mu.Unlock()

	fn()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	d.state = Idle
	d.gen++
}
