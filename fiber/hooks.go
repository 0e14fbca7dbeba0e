package fiber

import (
	"sync"
	"time"
)

// Hooks are a scheduler's override points. Every method is called with the
// scheduler it serves, and may be called concurrently from all its workers.
type Hooks interface {
	// Tickle hints that work may be available for a worker that is idle.
	Tickle(s *Scheduler)
	// Idle is the body of each worker's idle fiber. It must yield while
	// there may be more work, and return once the scheduler is stopping,
	// which ends the worker.
	Idle(s *Scheduler)
	// Stopping reports whether the scheduler may shut down, see
	// Scheduler.Drained for the default.
	Stopping(s *Scheduler) bool
}

// SpinHooks is the default Hooks: tickle only logs, and idle workers spin,
// yielding each time round, until the scheduler is drained.
type SpinHooks struct{}

var _ Hooks = SpinHooks{}

func (SpinHooks) Tickle(s *Scheduler) {
	s.traceLimited("tickle").
		Log("tickle")
}

func (SpinHooks) Idle(s *Scheduler) {
	s.traceLimited("idle").
		Log("idle")
	for !s.Stopping() {
		YieldToHold()
	}
}

func (SpinHooks) Stopping(s *Scheduler) bool {
	return s.Drained()
}

// DefaultPollInterval bounds how long a WakeHooks idle worker waits for a
// tickle before re-checking the queue.
const DefaultPollInterval = 10 * time.Millisecond

// WakeHooks parks idle workers until tickled, or until the poll interval
// elapses. Each tickle wakes every idle worker, so the tickles of Stop reach
// all of them at once.
type WakeHooks struct {
	wake chan struct{} // closed and replaced by each tickle, guarded by mu
	poll time.Duration
	mu   sync.Mutex
}

var _ Hooks = (*WakeHooks)(nil)

// NewWakeHooks returns WakeHooks that wait at most poll (DefaultPollInterval
// if not positive) between checks.
func NewWakeHooks(poll time.Duration) *WakeHooks {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &WakeHooks{
		wake: make(chan struct{}),
		poll: poll,
	}
}

func (h *WakeHooks) Tickle(s *Scheduler) {
	h.mu.Lock()
	close(h.wake)
	h.wake = make(chan struct{})
	h.mu.Unlock()
	s.traceLimited("tickle").
		Log("tickle")
}

// waiter returns the channel the next tickle closes.
func (h *WakeHooks) waiter() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wake
}

func (h *WakeHooks) Idle(s *Scheduler) {
	s.traceLimited("idle").
		Log("idle")
	timer := time.NewTimer(h.poll)
	defer timer.Stop()
	for {
		// taken before the check, so a tickle in between is not missed
		wake := h.waiter()
		if s.Stopping() {
			return
		}
		select {
		case <-wake:
		case <-timer.C:
		}
		timer.Reset(h.poll)
		YieldToHold()
	}
}

func (h *WakeHooks) Stopping(s *Scheduler) bool {
	return s.Drained()
}
