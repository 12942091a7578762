package attempt

import (
	"sync"
	"time"
)

// defaultStallInterval is how long the cursor may sit on one word without
// progress before a stall fires.
const defaultStallInterval = 5 * time.Second

// Watchdog fires a callback when no reading progress has been observed for
// the configured interval. It is the time-based companion of the aligner: the
// aligner itself never blocks waiting for input, so when the upstream token
// stream goes quiet the watchdog is the only source of feedback.
//
// The watchdog produces nothing while suspended (attempt paused) and rearms
// itself after every firing so repeated stalls on the same word keep
// surfacing. The actual stall policy — emit cap, forced advance — lives in
// the [Controller] callback, which synchronises on the controller mutex.
//
// All methods are safe for concurrent use.
type Watchdog struct {
	interval time.Duration
	fire     func()

	mu        sync.Mutex
	timer     *time.Timer
	suspended bool
	stopped   bool
}

// NewWatchdog creates a watchdog that invokes fire on its own timer goroutine
// whenever interval elapses without a [Watchdog.Reset]. The watchdog is
// created disarmed; call [Watchdog.Start] when the attempt enters recording.
func NewWatchdog(interval time.Duration, fire func()) *Watchdog {
	if interval <= 0 {
		interval = defaultStallInterval
	}
	return &Watchdog{interval: interval, fire: fire}
}

// Start arms the timer. Calling Start on a running or stopped watchdog is a
// no-op.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.interval, w.tick)
}

// Reset restarts the countdown. Called on every cursor advance.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.suspended || w.timer == nil {
		return
	}
	w.timer.Reset(w.interval)
}

// Suspend halts firing while the attempt is paused. The countdown restarts
// from zero on [Watchdog.Resume].
func (w *Watchdog) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Resume rearms the timer after a pause.
func (w *Watchdog) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.suspended {
		return
	}
	w.suspended = false
	if w.timer != nil {
		w.timer.Reset(w.interval)
	}
}

// Stop permanently disarms the watchdog. Safe to call multiple times.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// tick runs on the timer goroutine: fire the callback, then rearm.
func (w *Watchdog) tick() {
	w.mu.Lock()
	if w.stopped || w.suspended {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.fire()

	w.mu.Lock()
	if !w.stopped && !w.suspended && w.timer != nil {
		w.timer.Reset(w.interval)
	}
	w.mu.Unlock()
}
