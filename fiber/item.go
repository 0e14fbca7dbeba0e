package fiber

// AnyThread is the affinity hint of an item any worker may run.
const AnyThread int64 = 0

// Item is a unit of work for a Scheduler: a fiber, or a plain callable the
// scheduler runs inside a fiber of its own. An item may be pinned to one
// worker thread, by that thread's id (see Scheduler.ThreadIDs).
type Item struct {
	fiber  *Fiber
	fn     func()
	thread int64
}

// FiberItem returns an item that resumes f.
func FiberItem(f *Fiber) Item {
	return Item{fiber: f}
}

// FuncItem returns an item that runs fn.
func FuncItem(fn func()) Item {
	return Item{fn: fn}
}

// On returns a copy of the item pinned to the given thread id.
func (it Item) On(thread int64) Item {
	it.thread = thread
	return it
}

func (it Item) Fiber() *Fiber { return it.fiber }
func (it Item) Func() func()  { return it.fn }
func (it Item) Thread() int64 { return it.thread }

// Valid reports whether the item carries a payload. Items without one are
// dropped by Schedule.
func (it Item) Valid() bool {
	return it.fiber != nil || it.fn != nil
}

// runnableOn reports whether a worker on the given thread may take the item.
func (it Item) runnableOn(thread int64) bool {
	return it.thread == AnyThread || it.thread == thread
}
