package fiber

// wakeSignal is delivered to a parked execution context.
type wakeSignal uint8

const (
	wakeResume wakeSignal = iota
	// wakeKill asks a suspended fiber to unwind instead of continuing.
	wakeKill
)

// execContext is a suspendable thread of execution.
//
// Each context is owned by exactly one goroutine, which is blocked in park
// whenever the context is switched out. At most one signal is ever pending,
// since a context is only resumed by whoever it last switched to.
type execContext struct {
	wake chan wakeSignal
}

func newExecContext() *execContext {
	return &execContext{wake: make(chan wakeSignal, 1)}
}

// resume delivers sig to c without blocking.
func (c *execContext) resume(sig wakeSignal) {
	c.wake <- sig
}

// park blocks the owning goroutine until c is resumed.
func (c *execContext) park() wakeSignal {
	return <-c.wake
}

// switchTo resumes to, then parks c.
func (c *execContext) switchTo(to *execContext) wakeSignal {
	to.resume(wakeResume)
	return c.park()
}
