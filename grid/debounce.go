package grid

import (
	"sync"
	"time"
)

// DefaultDebounce is the delay between the last keystroke and the recompute
// call it triggers.
const DefaultDebounce = 250 * time.Millisecond

// =============================================================================
// DEBOUNCER - Cancelable single-slot timer
// =============================================================================

// Debouncer runs at most one pending function: scheduling a new one cancels
// the previous, so a burst of keystrokes produces a single recompute call.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Schedule arranges fn to run after the configured delay, superseding any
// previously scheduled function.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		run := d.pending
		d.pending = nil
		d.timer = nil
		d.mu.Unlock()
		if run != nil {
			run()
		}
	})
}

// Cancel drops any pending function without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush runs the pending function immediately, if any. Used on blur and in
// tests to avoid waiting out the delay.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	run := d.pending
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.mu.Unlock()
	if run != nil {
		run()
	}
}
