package mafia

import (
	"sync"
	"time"
)

// PhaseTimer fires a callback when a phase deadline passes unless stopped.
// It is safe for concurrent use.
type PhaseTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewPhaseTimer creates and starts a timer that calls onDeadline after
// duration. onDeadline runs in a separate goroutine.
//
// Precondition: duration > 0; onDeadline must not be nil.
// Postcondition: Returns a running PhaseTimer; onDeadline will be called
// unless Stop is called first.
func NewPhaseTimer(duration time.Duration, onDeadline func()) *PhaseTimer {
	pt := &PhaseTimer{}
	pt.timer = time.AfterFunc(duration, func() {
		pt.mu.Lock()
		stopped := pt.stopped
		pt.mu.Unlock()
		if !stopped {
			onDeadline()
		}
	})
	return pt
}

// Reset cancels the current deadline and arms a new one.
//
// Precondition: duration > 0; onDeadline must not be nil.
func (pt *PhaseTimer) Reset(duration time.Duration, onDeadline func()) {
	pt.mu.Lock()
	pt.stopped = false
	pt.timer.Stop()
	pt.mu.Unlock()

	newTimer := time.AfterFunc(duration, func() {
		pt.mu.Lock()
		s := pt.stopped
		pt.mu.Unlock()
		if !s {
			onDeadline()
		}
	})

	pt.mu.Lock()
	pt.timer = newTimer
	pt.mu.Unlock()
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onDeadline will not be called after Stop returns.
func (pt *PhaseTimer) Stop() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.stopped = true
	pt.timer.Stop()
}
