package fiber

import (
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-fiber/internal/goid"
	"github.com/joeycumines/go-fiber/osthread"
	"github.com/joeycumines/logiface"
)

// callers maps goroutine id to the use-caller *Scheduler it created.
var callers sync.Map

// Scheduler runs queued fibers and callables on a fixed pool of worker
// threads, each of which runs one fiber at a time.
//
// Lifecycle:
//
//	NewScheduler → Start → Schedule... → Stop → Close
//
// Items are taken in queue order, except that a worker passes over items
// pinned to another thread, and fibers that are running elsewhere. A fiber
// item that yields with YieldToReady is requeued, keeping its pin. One that
// yields with YieldToHold stays off the queue until scheduled again.
//
// With use-caller (the default), the goroutine that called NewScheduler is
// one of the workers, but it only runs from within Stop, which it must be
// the one to call.
type Scheduler struct {
	hooks       Hooks
	logger      *logiface.Logger[logiface.Event]
	limiter     *catrate.Limiter
	metrics     *metricsRecorder
	root        *Fiber
	rootRun     func()
	name        string
	queue       []Item
	threads     []*osthread.Thread
	threadIDs   []int64
	rootThread  int64
	callerGID   uint64
	threadCount int
	stackSize   int
	active      atomic.Int64
	idle        atomic.Int64
	mu          sync.Mutex
	stopping    bool // true unless started, guarded by mu
	autoStop    bool // Stop requested, guarded by mu
	closed      bool
}

// worker is the state of one run loop.
type worker struct {
	s      *Scheduler
	idle   *Fiber
	cb     *Fiber // cached fiber for running callables
	thread int64
}

// NewScheduler creates a stopped scheduler with threads workers. It panics
// with a *ContractViolation if threads is less than 1, or if use-caller is
// enabled and the calling goroutine already belongs to a scheduler.
func NewScheduler(threads int, opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if threads < 1 {
		violation("NewScheduler", "thread count %d is not positive", threads)
	}

	s := &Scheduler{
		name:      cfg.name,
		hooks:     cfg.hooks,
		logger:    cfg.logger,
		stackSize: cfg.stackSize,
		stopping:  true,
	}
	if cfg.logRates != nil {
		s.limiter = catrate.NewLimiter(cfg.logRates)
	}
	if cfg.metricsEnabled {
		s.metrics = &metricsRecorder{}
	}

	if cfg.useCaller {
		if CurrentScheduler() != nil {
			violation("NewScheduler", "calling goroutine already belongs to a scheduler")
		}
		threads--
		s.callerGID = goid.Get()
		s.rootThread = osthread.Self().ID()
		w := &worker{s: s, thread: s.rootThread}
		s.rootRun = func() { s.run(w) }
		s.root = newFiber(s.rootRun, s.stackSize, true)
		s.root.worker = w
		s.threadIDs = append(s.threadIDs, s.rootThread)
		callers.Store(s.callerGID, s)
	}
	s.threadCount = threads

	return s, nil
}

// Name returns the display name.
func (s *Scheduler) Name() string { return s.name }

// RootThreadID returns the thread id of the use-caller goroutine, or
// AnyThread if the caller does not participate.
func (s *Scheduler) RootThreadID() int64 { return s.rootThread }

// ThreadIDs returns the ids of the threads items may be pinned to: the root
// thread, if any, then the spawned workers of the current run.
func (s *Scheduler) ThreadIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.threadIDs)
}

// ActiveCount returns the number of workers currently running an item.
func (s *Scheduler) ActiveCount() int64 { return s.active.Load() }

// IdleCount returns the number of workers currently in their idle fiber.
func (s *Scheduler) IdleCount() int64 { return s.idle.Load() }

// Pending returns the number of queued items.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Metrics returns a snapshot of runtime metrics, or nil unless the
// scheduler was created WithMetrics(true).
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics.snapshot()
}

// Schedule queues an item, returning true if the queue was empty, in which
// case the tickle hook has been called. Items without a payload are dropped.
func (s *Scheduler) Schedule(it Item) bool {
	checkItem(it)
	s.mu.Lock()
	needTickle := s.scheduleLocked(it)
	s.mu.Unlock()
	if needTickle {
		s.tickle()
	}
	return needTickle
}

// ScheduleBatch queues items under one lock acquisition, tickling at most
// once. It returns true if the queue was empty before any item was added.
func (s *Scheduler) ScheduleBatch(items []Item) bool {
	for _, it := range items {
		checkItem(it)
	}
	needTickle := false
	s.mu.Lock()
	for _, it := range items {
		needTickle = s.scheduleLocked(it) || needTickle
	}
	s.mu.Unlock()
	if needTickle {
		s.tickle()
	}
	return needTickle
}

// ScheduleFunc is Schedule(FuncItem(fn)).
func (s *Scheduler) ScheduleFunc(fn func()) bool {
	return s.Schedule(FuncItem(fn))
}

// ScheduleFiber is Schedule(FiberItem(f)).
func (s *Scheduler) ScheduleFiber(f *Fiber) bool {
	return s.Schedule(FiberItem(f))
}

func checkItem(it Item) {
	if it.fiber != nil && it.fiber.main {
		violation("Schedule", "fiber %d is a thread-main fiber", it.fiber.id)
	}
}

func (s *Scheduler) scheduleLocked(it Item) bool {
	if !it.Valid() {
		return false
	}
	needTickle := len(s.queue) == 0
	s.queue = append(s.queue, it)
	s.metrics.queueDepth(len(s.queue))
	return needTickle
}

// Remove drops every queued item for which match returns true, returning how
// many were dropped. It is the only way an item pinned to a thread that never
// runs leaves the queue.
func (s *Scheduler) Remove(match func(Item) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = slices.DeleteFunc(s.queue, match)
	return n - len(s.queue)
}

// Start spawns the worker threads. It is a no-op unless the scheduler is
// stopped, so calling it twice spawns one set of workers.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		violation("Start", "scheduler %q is closed", s.name)
	}
	if !s.stopping {
		return
	}
	s.stopping = false
	s.autoStop = false

	if s.root != nil && s.root.State().IsTerminal() {
		s.root.Reset(s.rootRun)
	}

	for i := range s.threadCount {
		w := &worker{s: s}
		t := osthread.New(s.name+"_"+strconv.Itoa(i), func() { s.run(w) })
		s.threads = append(s.threads, t)
		s.threadIDs = append(s.threadIDs, t.ID())
	}

	s.logger.Debug().
		Str("scheduler", s.name).
		Int("threads", s.threadCount).
		Bool("use_caller", s.root != nil).
		Log("scheduler started")
}

// Stopping reports whether the scheduler may shut down, as decided by its
// hooks.
func (s *Scheduler) Stopping() bool {
	return s.hooks.Stopping(s)
}

// Drained reports whether Stop has been called, and no item is queued or
// running. It is the default Hooks.Stopping.
func (s *Scheduler) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoStop && s.stopping && len(s.queue) == 0 && s.active.Load() == 0
}

// Stop blocks until every worker has drained the queue and exited. With
// use-caller, Stop must be called by the goroutine that created the
// scheduler, and is where that goroutine runs its share of the work.
// Otherwise Stop must not be called from within the scheduler.
//
// Items pinned to a thread that never takes them keep the scheduler from
// draining, see Remove.
func (s *Scheduler) Stop() {
	start := time.Now()

	s.mu.Lock()
	s.autoStop = true
	s.mu.Unlock()

	if s.root != nil && s.threadCount == 0 {
		if st := s.root.State(); st == StateTerm || st == StateInit {
			s.mu.Lock()
			s.stopping = true
			s.mu.Unlock()
			if s.Stopping() {
				s.logger.Debug().
					Str("scheduler", s.name).
					Log("scheduler stopped")
				return
			}
		}
	}

	if s.root != nil {
		if goid.Get() != s.callerGID {
			violation("Stop", "scheduler %q must be stopped by the goroutine that created it", s.name)
		}
	} else if CurrentScheduler() == s {
		violation("Stop", "scheduler %q cannot be stopped from within itself", s.name)
	}

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.logger.Debug().
		Str("scheduler", s.name).
		Log("scheduler stopping")

	for range s.threadCount {
		s.tickle()
	}
	if s.root != nil {
		s.tickle()
	}

	if s.root != nil && !s.Stopping() {
		if s.root.State().IsTerminal() {
			s.root.Reset(s.rootRun)
		}
		caller := lookupCurrent()
		if caller == nil {
			caller = newMainFiber()
			SetCurrent(caller)
			defer SetCurrent(nil)
		}
		s.logger.Debug().
			Str("scheduler", s.name).
			Int64("thread", s.rootThread).
			Log("running root worker")
		s.root.resumeFrom(caller, "Stop")
	}

	s.mu.Lock()
	threads := s.threads
	s.threads = nil
	if s.root != nil {
		s.threadIDs = []int64{s.rootThread}
	} else {
		s.threadIDs = nil
	}
	s.mu.Unlock()

	for _, t := range threads {
		_ = t.Join()
	}

	s.logger.Debug().
		Str("scheduler", s.name).
		Dur("elapsed", time.Since(start)).
		Log("scheduler stopped")
}

// Close releases the scheduler's use-caller binding. It panics with a
// *ContractViolation if the scheduler was started and not stopped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	stopped := s.stopping && len(s.threads) == 0
	s.closed = stopped
	s.mu.Unlock()

	if !stopped || (s.root != nil && s.root.State() == StateExec) {
		violation("Close", "scheduler %q has not been stopped", s.name)
	}
	if s.root != nil {
		callers.CompareAndDelete(s.callerGID, s)
	}
}

func (s *Scheduler) tickle() {
	s.metrics.tickle()
	s.hooks.Tickle(s)
}

// traceLimited returns a trace builder, or nil if category has exceeded the
// log rate.
func (s *Scheduler) traceLimited(category string) *logiface.Builder[logiface.Event] {
	if _, ok := s.limiter.Allow(category); !ok {
		return nil
	}
	return s.logger.Trace().
		Str("scheduler", s.name)
}

// pick is the outcome of one scan of the queue.
type pick struct {
	item Item
	// taken means item was removed from the queue, and counted as active
	taken bool
	// claimed means the item's fiber was moved to StateExec, or the item is
	// a callable
	claimed bool
	// busy means a fiber was passed over because it is running elsewhere
	busy   bool
	tickle bool
}

// take removes the first item the worker on thread may run.
func (s *Scheduler) take(thread int64) (p pick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.queue {
		if !it.runnableOn(thread) {
			p.tickle = true
			continue
		}
		claimed := true
		if it.fiber != nil {
			var prev State
			if prev, claimed = it.fiber.state.TransitionAny(resumableStates, StateExec); !claimed && prev == StateExec {
				p.busy = true
				continue
			}
		}
		s.queue = slices.Delete(s.queue, i, i+1)
		s.active.Add(1)
		p.item, p.taken, p.claimed = it, true, claimed
		// wake another worker for whatever is left
		p.tickle = p.tickle || i < len(s.queue)
		return p
	}
	return p
}

func (s *Scheduler) run(w *worker) {
	var self *Fiber
	if s.root != nil && s.root.worker == w {
		self = s.root
	} else {
		w.thread = osthread.CurrentID()
		self = newMainFiber()
		self.worker = w
		SetCurrent(self)
		defer SetCurrent(nil)
	}

	s.logger.Debug().
		Str("scheduler", s.name).
		Int64("thread", w.thread).
		Str("thread_name", osthread.CurrentName()).
		Log("worker run")

	w.idle = newFiber(func() { s.hooks.Idle(s) }, s.stackSize, false)
	w.idle.worker = w

	for {
		p := s.take(w.thread)
		if p.tickle {
			s.tickle()
		}

		switch {
		case p.taken && !p.claimed:
			// finished fiber, nothing to run
			s.active.Add(-1)

		case p.taken && p.item.fiber != nil:
			s.dispatchFiber(w, self, p.item)

		case p.taken:
			s.dispatchFunc(w, self, p.item)

		case p.busy:
			runtime.Gosched()

		default:
			if st := w.idle.State(); st.IsTerminal() {
				if st == StateExcept {
					s.logger.Err().
						Str("scheduler", s.name).
						Int64("thread", w.thread).
						Err(w.idle.Err()).
						Log("idle fiber failed")
				}
				s.logger.Debug().
					Str("scheduler", s.name).
					Int64("thread", w.thread).
					Log("worker exit")
				return
			}
			if _, ok := w.idle.state.TransitionAny(resumableStates, StateExec); !ok {
				violation("run", "idle fiber %d is %s", w.idle.id, w.idle.State())
			}
			s.idle.Add(1)
			s.metrics.idle()
			w.idle.enter(self, wakeResume)
			s.idle.Add(-1)
		}
	}
}

func (s *Scheduler) dispatchFiber(w *worker, self *Fiber, it Item) {
	f := it.fiber
	start := s.metrics.start()
	st := f.enter(self, wakeResume)
	s.active.Add(-1)
	s.metrics.finish(start, st)
	s.settle(w, it, f, st)
}

func (s *Scheduler) dispatchFunc(w *worker, self *Fiber, it Item) {
	// The cached fiber stays terminal between callables, so a stale queue
	// entry for it is discarded by take, or skipped while it runs again.
	f := w.cb
	if f == nil || !f.rebind(it.fn) {
		f = newFiber(it.fn, s.stackSize, false)
		f.state.Store(StateExec)
		w.cb = f
	}
	start := s.metrics.start()
	st := f.enter(self, wakeResume)
	s.active.Add(-1)
	s.metrics.finish(start, st)
	s.settle(w, it, f, st)

	if !st.IsTerminal() {
		// the fiber now belongs to whoever resumes it
		w.cb = nil
	}
}

// settle acts on the state a dispatched fiber came back in.
func (s *Scheduler) settle(w *worker, it Item, f *Fiber, st State) {
	switch st {
	case StateReady:
		s.Schedule(FiberItem(f).On(it.thread))
	case StateExcept:
		s.logger.Debug().
			Str("scheduler", s.name).
			Int64("thread", w.thread).
			Uint64("fiber_id", f.id).
			Err(f.Err()).
			Log("fiber failed")
	}
}

// CurrentScheduler returns the scheduler running the calling fiber, or the
// use-caller scheduler created by the calling goroutine, or nil.
func CurrentScheduler() *Scheduler {
	if w := currentWorker(); w != nil {
		return w.s
	}
	if v, ok := callers.Load(goid.Get()); ok {
		return v.(*Scheduler)
	}
	return nil
}

// CurrentThreadID returns the id of the worker thread running the calling
// fiber. Outside any scheduler it falls back to osthread.CurrentID.
func CurrentThreadID() int64 {
	if w := currentWorker(); w != nil {
		return w.thread
	}
	return osthread.CurrentID()
}

// currentWorker walks the chain of resumers from the calling fiber to the
// first one that is a worker's own fiber.
func currentWorker() *worker {
	for f := lookupCurrent(); f != nil; f = f.resumer {
		if f.worker != nil {
			return f.worker
		}
	}
	return nil
}
