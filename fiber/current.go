package fiber

import (
	"sync"

	"github.com/joeycumines/go-fiber/internal/goid"
)

// registry maps goroutine id to the *Fiber that goroutine is acting as.
var registry sync.Map

func lookupCurrent() *Fiber {
	if v, ok := registry.Load(goid.Get()); ok {
		return v.(*Fiber)
	}
	return nil
}

// Current returns the fiber the calling goroutine is running as. A goroutine
// that is not a fiber gets a thread-main fiber, created on first use and kept
// until SetCurrent(nil).
func Current() *Fiber {
	gid := goid.Get()
	if v, ok := registry.Load(gid); ok {
		return v.(*Fiber)
	}
	f := newMainFiber()
	registry.Store(gid, f)
	return f
}

// SetCurrent binds f as the calling goroutine's current fiber, or clears the
// binding if f is nil.
func SetCurrent(f *Fiber) {
	gid := goid.Get()
	if f == nil {
		registry.Delete(gid)
		return
	}
	registry.Store(gid, f)
}

// CurrentID returns the id of the calling goroutine's fiber, or 0 if it has
// none. It never creates a thread-main fiber.
func CurrentID() uint64 {
	if f := lookupCurrent(); f != nil {
		return f.id
	}
	return 0
}
