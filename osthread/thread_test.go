package osthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_RunsOnRegisteredThread verifies the function observes its own
// handle through Current.
func TestNew_RunsOnRegisteredThread(t *testing.T) {
	var inside *Thread
	var name string
	th := New("worker_0", func() {
		inside = Current()
		name = CurrentName()
	})
	require.NoError(t, th.Join())
	assert.Same(t, th, inside)
	assert.Equal(t, "worker_0", name)
	assert.Equal(t, "worker_0", th.Name())
}

func TestNew_IDsUniqueAndIncreasing(t *testing.T) {
	a := New("a", func() {})
	b := New("b", func() {})
	require.NoError(t, a.Join())
	require.NoError(t, b.Join())
	assert.Positive(t, a.ID())
	assert.Greater(t, b.ID(), a.ID())
}

func TestNew_NilFunctionPanics(t *testing.T) {
	assert.Panics(t, func() { New("x", nil) })
}

// TestJoin_BlocksUntilReturn verifies Join does not return while the thread
// function is still running.
func TestJoin_BlocksUntilReturn(t *testing.T) {
	release := make(chan struct{})
	th := New("blocked", func() { <-release })

	joined := make(chan error, 1)
	go func() { joined <- th.Join() }()

	select {
	case <-joined:
		t.Fatal("join returned before thread function")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("join did not return")
	}

	select {
	case <-th.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestJoin_Self(t *testing.T) {
	errs := make(chan error, 1)
	var th *Thread
	ready := make(chan struct{})
	th = New("self", func() {
		<-ready
		errs <- th.Join()
	})
	close(ready)
	assert.ErrorIs(t, <-errs, ErrJoinSelf)
	require.NoError(t, th.Join())
}

func TestCurrent_AfterExitIsUnregistered(t *testing.T) {
	th := New("gone", func() {})
	require.NoError(t, th.Join())
	_, ok := registry.Load(th.gid)
	assert.False(t, ok)
}

// TestSelf_AdoptsOnce verifies repeated calls on one goroutine return the
// same identity, and that adopted threads cannot be joined.
func TestSelf_AdoptsOnce(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Forget()

		assert.Nil(t, Current())
		assert.Equal(t, UnknownName, CurrentName())
		assert.Zero(t, CurrentID())

		a := Self()
		b := Self()
		assert.Same(t, a, b)
		assert.Equal(t, a.ID(), CurrentID())
		assert.ErrorIs(t, a.Join(), ErrNotJoinable)
		assert.Nil(t, a.Done())

		SetCurrentName("caller")
		assert.Equal(t, "caller", CurrentName())

		Forget()
		assert.Nil(t, Current())
		c := Self()
		assert.NotEqual(t, a.ID(), c.ID())
	}()
	<-done
}

func TestForget_IgnoresStartedThreads(t *testing.T) {
	var after *Thread
	th := New("kept", func() {
		Forget()
		after = Current()
	})
	require.NoError(t, th.Join())
	assert.Same(t, th, after)
}

func TestSetName_FromOtherGoroutine(t *testing.T) {
	release := make(chan struct{})
	th := New("before", func() { <-release })
	th.SetName("after")
	assert.Equal(t, "after", th.Name())
	close(release)
	require.NoError(t, th.Join())
}
