package realtime

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer a Deferred needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d. time.AfterFunc satisfies it
// through SystemAfterFunc; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// SystemAfterFunc runs f on its own goroutine after d using the runtime timer.
func SystemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Deferred holds at most one pending transition. Scheduling a new one stops
// the previous timer; Stop drops whatever is pending.
//
// Stopping a timer cannot recall a callback that already started, so callers
// that mutate state from fn should also check their own sequence token.
type Deferred struct {
	mu    sync.Mutex
	after AfterFunc
	timer Timer
	seq   uint64
}

// NewDeferred returns a Deferred using after, or SystemAfterFunc when nil.
func NewDeferred(after AfterFunc) *Deferred {
	if after == nil {
		after = SystemAfterFunc
	}
	return &Deferred{after: after}
}

// Schedule arranges for fn to run after delay, superseding any pending transition.
func (d *Deferred) Schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.after(delay, func() {
		d.mu.Lock()
		current := d.seq == seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels the pending transition. It reports whether one was pending.
func (d *Deferred) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether a transition is scheduled and has not fired.
func (d *Deferred) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
