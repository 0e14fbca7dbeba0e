package fiber

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// count returns the number of logged lines containing substr.
func (b *syncBuffer) count(substr string) int {
	n := 0
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func newTestLogger(b *syncBuffer) *logiface.Logger[logiface.Event] {
	return NewDefaultLogger(b, logiface.LevelTrace)
}

// within runs fn on a new goroutine, failing the test if it does not return
// before d.
func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("did not return within %v", d)
	}
}

// requireViolation asserts fn panics with a *ContractViolation for op.
func requireViolation(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected contract violation")
		cv, ok := r.(*ContractViolation)
		require.True(t, ok, "unexpected panic value: %v", r)
		require.Equal(t, op, cv.Op)
	}()
	fn()
}

// releaseCurrent drops the thread-main fiber the test goroutine may have
// been given.
func releaseCurrent(t *testing.T) {
	t.Cleanup(func() { SetCurrent(nil) })
}
