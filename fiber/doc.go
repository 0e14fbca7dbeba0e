// Package fiber implements cooperative fibers, multiplexed over a fixed pool
// of worker threads by a Scheduler.
//
// A Fiber runs a callable until it yields (YieldToHold, YieldToReady) or
// returns. There is no preemption: a fiber that never yields occupies its
// worker until it finishes. Panics in a fiber's callable never escape it, the
// fiber ends in StateExcept and the failure is available from Fiber.Err.
//
// A Scheduler owns a run queue of Items (fibers, or plain callables it wraps
// in fibers of its own), and a set of workers that take items from it. Items
// may be pinned to one worker thread. The goroutine that constructs a
// scheduler may participate as a worker ("use-caller"), in which case it
// does so from within Stop.
//
// Usage:
//
//	s, err := fiber.NewScheduler(4, fiber.WithName("io"), fiber.WithUseCaller(false))
//	if err != nil {
//		return err
//	}
//	s.Start()
//	s.ScheduleFunc(func() {
//		step1()
//		fiber.YieldToReady()
//		step2()
//	})
//	s.Stop()
//	s.Close()
//
// # Implementation
//
// Each fiber's callable runs on a goroutine of its own, which stands in for
// the fiber's stack. Switching is a strict handoff over channels, so a fiber
// and its resumer never run at the same time, and a worker runs exactly one
// fiber at a time. Worker threads are goroutines locked to OS threads (see
// package osthread). The fibers they run are not, so pinning an item to a
// thread pins it to that worker, not to a kernel thread.
//
// Misuse of the API (resuming a fiber that is not resumable, stopping a
// scheduler from the wrong goroutine, closing one that is running) panics
// with a *ContractViolation, after logging it at critical level.
package fiber
