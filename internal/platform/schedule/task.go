// Package schedule wraps clock timers in cancellable task handles.
package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a handle to a pending one-shot or periodic callback.
type Task struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	timer     clockwork.Timer
	periodic  bool
	fired     bool
	cancelled bool
}

// After runs fn once after d elapses on clock.
func After(clock clockwork.Clock, d time.Duration, fn func()) *Task {
	t := &Task{clock: clock}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timer = clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		fn()
	})
	return t
}

// Every runs fn after initial elapses and then every interval until cancelled.
// The next run is armed before fn is invoked.
func Every(clock clockwork.Clock, initial, interval time.Duration, fn func()) *Task {
	t := &Task{clock: clock, periodic: true}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.arm(initial, interval, fn)
	return t
}

// arm must be called with t.mu held.
func (t *Task) arm(d, interval time.Duration, fn func()) {
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.arm(interval, interval, fn)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops the task. It reports whether this call cancelled a live task.
// A callback already running when Cancel is called is not interrupted.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled {
		return false
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	return t.periodic || !t.fired
}

// Active reports whether the task may still fire.
func (t *Task) Active() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.cancelled && (t.periodic || !t.fired)
}
