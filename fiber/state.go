package fiber

import (
	"sync/atomic"
)

// State represents a fiber's position in its lifecycle.
//
// State Machine:
//
//	StateInit → StateExec                   [resume]
//	StateHold → StateExec                   [resume]
//	StateReady → StateExec                  [resume]
//	StateExec → StateHold | StateReady      [yield]
//	StateExec → StateTerm | StateExcept     [return | panic]
//	StateInit | StateTerm | StateExcept → StateInit   [Reset]
//	StateTerm | StateExcept → StateExec     [scheduler reusing its callable fiber]
//
// State Transition Rules:
//   - Entering StateExec is always a CAS (TransitionAny), and whoever wins
//     it owns the fiber until the fiber suspends again.
//   - Leaving StateExec is published by that owner with Store, only after
//     the fiber has switched back to it.
type State uint64

const (
	// StateInit indicates the fiber has a callable but has not yet run it.
	StateInit State = 0
	// StateHold indicates the fiber yielded and waits to be resumed.
	StateHold State = 1
	// StateExec indicates the fiber is running, or has been claimed to run.
	StateExec State = 2
	// StateTerm indicates the callable returned normally.
	StateTerm State = 3
	// StateReady indicates the fiber yielded and asks to be rescheduled.
	StateReady State = 4
	// StateExcept indicates the callable panicked, or the fiber was closed.
	StateExcept State = 5
)

var (
	resumableStates = []State{StateInit, StateHold, StateReady}
	terminalStates  = []State{StateTerm, StateExcept}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateHold:
		return "Hold"
	case StateExec:
		return "Exec"
	case StateTerm:
		return "Term"
	case StateReady:
		return "Ready"
	case StateExcept:
		return "Except"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true for StateTerm and StateExcept.
func (s State) IsTerminal() bool {
	return s == StateTerm || s == StateExcept
}

// IsResumable returns true for the states a fiber may be resumed from.
func (s State) IsResumable() bool {
	return s == StateInit || s == StateHold || s == StateReady
}

// fastState is a lock-free state cell with cache-line padding.
type fastState struct { // betteralign:ignore
	_ [64]byte      // Cache line padding (before value) //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      // Pad to complete cache line (64 - 8 = 56) //nolint:unused
}

func (s *fastState) Load() State {
	return State(s.v.Load())
}

// Store publishes a state without validating the transition.
func (s *fastState) Store(state State) {
	s.v.Store(uint64(state))
}

// TransitionAny attempts to transition from any of validFrom to the target,
// returning the state it transitioned from.
func (s *fastState) TransitionAny(validFrom []State, to State) (State, bool) {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return from, true
		}
	}
	return s.Load(), false
}
