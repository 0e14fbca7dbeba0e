package fiber

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-fiber/config"
	"github.com/joeycumines/go-fiber/internal/goid"
	"github.com/sourcegraph/conc/panics"
)

// DefaultStackSize is the stack size recorded for fibers created without an
// explicit size, unless the fiber.stack_size config var says otherwise.
const DefaultStackSize = 128 * 1024

var stackSizeVar = config.MustLookup(config.Default, "fiber.stack_size", DefaultStackSize, "fiber stack size")

var (
	fiberIDCounter atomic.Uint64
	liveFibers     atomic.Int64
)

// fiberKill is the panic value that unwinds a fiber being closed.
type fiberKill struct{}

// Fiber is a cooperatively scheduled unit of execution.
//
// Each fiber runs its callable on a goroutine of its own, started on the
// first resume, which serves as the fiber's stack. Control passes between a
// fiber and whoever resumed it strictly by handoff, so exactly one of the two
// is ever running. The fiber suspends only by yielding (YieldToHold,
// YieldToReady, SwapOut, Back) or by finishing.
//
// A thread-main fiber (see Current) stands for a goroutine that was not
// started as a fiber. It is always in StateExec and can never be resumed.
type Fiber struct {
	state     fastState
	ctx       *execContext
	fn        func()
	resumer   *Fiber
	worker    *worker
	err       error
	id        uint64
	stackSize int
	pending   State
	main      bool
	useCaller bool
	running   bool
}

// New creates a fiber in StateInit that will run fn. It panics with a
// *ContractViolation if fn is nil or an option is invalid.
func New(fn func(), opts ...FiberOption) *Fiber {
	if fn == nil {
		violation("New", "nil callable")
	}
	cfg, err := resolveFiberOptions(opts)
	if err != nil {
		violation("New", "%v", err)
	}
	return newFiber(fn, cfg.stackSize, cfg.useCaller)
}

func newFiber(fn func(), stackSize int, useCaller bool) *Fiber {
	if stackSize <= 0 {
		stackSize = stackSizeVar.Get()
	}
	f := &Fiber{
		id:        fiberIDCounter.Add(1),
		ctx:       newExecContext(),
		fn:        fn,
		stackSize: stackSize,
		useCaller: useCaller,
	}
	f.state.Store(StateInit)
	track(f)
	return f
}

func newMainFiber() *Fiber {
	f := &Fiber{
		id:   fiberIDCounter.Add(1),
		ctx:  newExecContext(),
		main: true,
	}
	f.state.Store(StateExec)
	track(f)
	return f
}

func track(f *Fiber) {
	liveFibers.Add(1)
	runtime.AddCleanup(f, func(n *atomic.Int64) { n.Add(-1) }, &liveFibers)
}

// TotalFibers returns the number of live fibers, thread-main fibers
// included. A fiber stops counting once it is garbage collected, which
// never happens while it is suspended mid-callable.
func TotalFibers() int64 {
	return liveFibers.Load()
}

// ID returns the process-unique fiber id. Ids start at 1.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the current state.
func (f *Fiber) State() State { return f.state.Load() }

// StackSize returns the configured stack size. Goroutine stacks grow on
// demand, so this is advisory.
func (f *Fiber) StackSize() int { return f.stackSize }

// IsMain reports whether f is a thread-main fiber.
func (f *Fiber) IsMain() bool { return f.main }

// UseCaller reports whether f was created to run on behalf of the goroutine
// that resumes it, as a scheduler's root fiber is.
func (f *Fiber) UseCaller() bool { return f.useCaller }

// Err returns the failure recorded when f entered StateExcept: a
// *PanicError, ErrGoexit or ErrClosed. It is nil in every other state, and
// must not be called while f is running.
func (f *Fiber) Err() error { return f.err }

// Reset rebinds f to fn and returns it to StateInit, reusing its context.
// f must be in StateInit, StateTerm or StateExcept. A nil fn is allowed, but
// such a fiber must be Reset again before it is resumed.
func (f *Fiber) Reset(fn func()) {
	if f.main {
		violation("Reset", "fiber %d is a thread-main fiber", f.id)
	}
	if st := f.state.Load(); st != StateInit && !st.IsTerminal() {
		violation("Reset", "fiber %d is %s", f.id, st)
	}
	f.fn = fn
	f.err = nil
	f.state.Store(StateInit)
}

// SwapIn resumes f from the calling goroutine's current fiber, returning once
// f yields or finishes, with the state it did so in. f must be in StateInit,
// StateHold or StateReady.
func (f *Fiber) SwapIn() State {
	return f.resumeFrom(Current(), "SwapIn")
}

// Call is SwapIn, for fibers created with WithFiberUseCaller.
func (f *Fiber) Call() State {
	return f.resumeFrom(Current(), "Call")
}

// SwapOut suspends f, which must be the calling fiber, in StateHold and
// returns control to its resumer.
func (f *Fiber) SwapOut() {
	f.yield(StateHold, "SwapOut")
}

// Back is SwapOut, for fibers created with WithFiberUseCaller.
func (f *Fiber) Back() {
	f.yield(StateHold, "Back")
}

// YieldToHold suspends the calling fiber in StateHold. Something must
// resume or reschedule it explicitly.
func YieldToHold() {
	Current().yield(StateHold, "YieldToHold")
}

// YieldToReady suspends the calling fiber in StateReady, which a scheduler
// takes as a request to requeue it immediately.
func YieldToReady() {
	Current().yield(StateReady, "YieldToReady")
}

// Close unwinds a suspended fiber: its pending yield panics with an internal
// value, running its deferred calls, and it finishes in StateExcept with
// ErrClosed. Close does nothing for fibers that are not suspended in
// StateHold or StateReady, and panics for a running fiber.
//
// A queued fiber may be closed while no worker can take it, e.g. before the
// scheduler starts, and its queue entry is then discarded. Once a worker has
// claimed it the fiber counts as running, so Close must not race with a
// scheduler that may dispatch the same fiber.
func (f *Fiber) Close() {
	if f.main {
		return
	}
	if prev, ok := f.state.TransitionAny([]State{StateHold, StateReady}, StateExec); !ok {
		if prev == StateExec {
			violation("Close", "fiber %d is running", f.id)
		}
		return
	}
	f.enter(Current(), wakeKill)
}

// rebind claims a finished fiber to run fn, moving it from StateTerm or
// StateExcept straight to StateExec. It reports false if f was not finished.
func (f *Fiber) rebind(fn func()) bool {
	if _, ok := f.state.TransitionAny(terminalStates, StateExec); !ok {
		return false
	}
	f.fn = fn
	f.err = nil
	return true
}

func (f *Fiber) resumeFrom(from *Fiber, op string) State {
	if f.main {
		violation(op, "fiber %d is a thread-main fiber", f.id)
	}
	if from == f {
		violation(op, "fiber %d cannot resume itself", f.id)
	}
	if prev, ok := f.state.TransitionAny(resumableStates, StateExec); !ok {
		violation(op, "fiber %d is %s", f.id, prev)
	}
	return f.enter(from, wakeResume)
}

// enter switches from the calling fiber into f, which the caller has already
// moved to StateExec, and publishes the state f comes back in.
func (f *Fiber) enter(from *Fiber, sig wakeSignal) State {
	f.resumer = from
	if f.running {
		f.ctx.resume(sig)
	} else {
		if f.fn == nil {
			f.resumer = nil
			f.state.Store(StateInit)
			violation("resume", "fiber %d has no callable", f.id)
		}
		f.running = true
		go f.trampoline(f.fn)
	}

	from.ctx.park()

	f.resumer = nil
	st := f.pending
	f.state.Store(st)
	return st
}

func (f *Fiber) yield(next State, op string) {
	if f.main || lookupCurrent() != f {
		violation(op, "not called from inside fiber %d", f.id)
	}
	f.pending = next
	if f.ctx.switchTo(f.resumer.ctx) == wakeKill {
		panic(fiberKill{})
	}
}

// trampoline runs the callable on the fiber's own goroutine, and always
// hands control back to the resumer, however the callable ends.
func (f *Fiber) trampoline(fn func()) {
	gid := goid.Get()
	registry.Store(gid, f)

	next, err := StateExcept, error(ErrGoexit)
	defer func() {
		registry.Delete(gid)
		f.fn = nil
		f.err = err
		f.pending = next
		f.running = false
		resumer := f.resumer
		resumer.ctx.resume(wakeResume)
	}()

	var pc panics.Catcher
	pc.Try(fn)

	r := pc.Recovered()
	if r == nil {
		next, err = StateTerm, nil
		return
	}
	switch v := r.Value.(type) {
	case fiberKill:
		err = ErrClosed
	case *ContractViolation:
		panic(v)
	default:
		err = &PanicError{Value: r.Value, Stack: r.Stack}
		getLogger().Err().
			Err(err).
			Uint64("fiber_id", f.id).
			Str("stack", string(r.Stack)).
			Log("fiber callable panicked")
	}
}
