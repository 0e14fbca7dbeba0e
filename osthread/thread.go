// Package osthread runs functions on dedicated, named OS threads and keeps
// per-goroutine bookkeeping of which thread is which.
//
// A Thread started with New owns a goroutine locked to its OS thread for its
// whole lifetime. Goroutines that were not started by New may adopt an
// identity with Self, which is how the goroutine that constructs a scheduler
// gets a thread id of its own.
//
// Thread ids are process-unique, start at 1, and are never reused. Zero is
// never a valid id. The kernel thread id is reported separately, via TID, and
// is for diagnostics only.
package osthread

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-fiber/internal/goid"
)

// UnknownName is reported by CurrentName for goroutines with no thread
// identity.
const UnknownName = "UNKNOWN"

var (
	// ErrJoinSelf is returned by Join when a thread attempts to join itself.
	ErrJoinSelf = errors.New("osthread: thread cannot join itself")

	// ErrNotJoinable is returned by Join for threads adopted via Self.
	ErrNotJoinable = errors.New("osthread: adopted thread is not joinable")
)

var (
	idCounter atomic.Int64
	// registry maps goroutine id to *Thread
	registry sync.Map
)

// Thread is a handle to an OS thread created by New, or adopted by Self.
type Thread struct {
	done   chan struct{}
	name   atomic.Pointer[string]
	id     int64
	tid    atomic.Int64
	gid    uint64
	locked bool
}

// New starts fn on a new goroutine locked to its own OS thread, named name.
// It blocks until the thread has started and registered itself, so that the
// returned handle's ID, TID and the thread's Current lookup are all valid
// immediately. New panics if fn is nil.
func New(name string, fn func()) *Thread {
	if fn == nil {
		panic("osthread: nil function")
	}

	t := &Thread{
		id:     idCounter.Add(1),
		done:   make(chan struct{}),
		locked: true,
	}
	t.name.Store(&name)

	started := make(chan struct{})
	go func() {
		// never unlocked, the OS thread is discarded with the goroutine
		runtime.LockOSThread()
		defer close(t.done)

		t.gid = goid.Get()
		t.tid.Store(gettid())
		registry.Store(t.gid, t)
		defer registry.Delete(t.gid)
		_ = setOSThreadName(name)

		close(started)
		fn()
	}()
	<-started

	return t
}

// Self returns the Thread for the calling goroutine, adopting it (assigning a
// new id) if it has none. Adopted threads are not locked to their OS thread,
// their TID is the kernel id observed at adoption time.
func Self() *Thread {
	gid := goid.Get()
	if v, ok := registry.Load(gid); ok {
		return v.(*Thread)
	}
	t := &Thread{
		id:  idCounter.Add(1),
		gid: gid,
	}
	name := UnknownName
	t.name.Store(&name)
	t.tid.Store(gettid())
	registry.Store(gid, t)
	return t
}

// Forget removes the calling goroutine's adopted identity, if any. It has no
// effect on threads started by New.
func Forget() {
	gid := goid.Get()
	if v, ok := registry.Load(gid); ok && !v.(*Thread).locked {
		registry.Delete(gid)
	}
}

// Current returns the Thread for the calling goroutine, or nil if it has
// neither been started by New nor adopted.
func Current() *Thread {
	if v, ok := registry.Load(goid.Get()); ok {
		return v.(*Thread)
	}
	return nil
}

// CurrentID returns the id of the calling goroutine's thread, or 0.
func CurrentID() int64 {
	if t := Current(); t != nil {
		return t.id
	}
	return 0
}

// CurrentName returns the name of the calling goroutine's thread, or
// UnknownName.
func CurrentName() string {
	if t := Current(); t != nil {
		return t.Name()
	}
	return UnknownName
}

// SetCurrentName renames the calling goroutine's thread, if it has one.
func SetCurrentName(name string) {
	if t := Current(); t != nil {
		t.SetName(name)
	}
}

// ID returns the process-unique thread id.
func (t *Thread) ID() int64 { return t.id }

// TID returns the kernel thread id, or 0 where the platform offers none.
func (t *Thread) TID() int64 { return t.tid.Load() }

// Name returns the thread's display name.
func (t *Thread) Name() string { return *t.name.Load() }

// SetName changes the display name. The OS-level thread name is only updated
// when called from the thread itself, and only for threads started by New.
func (t *Thread) SetName(name string) {
	t.name.Store(&name)
	if t.locked && goid.Get() == t.gid {
		_ = setOSThreadName(name)
	}
}

// Done returns a channel that is closed once the thread function returns.
// It is nil for adopted threads.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Join blocks until the thread function returns.
func (t *Thread) Join() error {
	if t.done == nil {
		return ErrNotJoinable
	}
	if goid.Get() == t.gid {
		return ErrJoinSelf
	}
	<-t.done
	return nil
}
