package fiber

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrClosed is the failure recorded for a fiber unwound by Close.
	ErrClosed = errors.New("fiber: closed while suspended")

	// ErrGoexit is the failure recorded for a fiber whose callable called
	// runtime.Goexit.
	ErrGoexit = errors.New("fiber: callable exited via runtime.Goexit")

	// ErrInvalidStackSize is returned for a non-positive stack size option.
	ErrInvalidStackSize = errors.New("fiber: invalid stack size")

	// ErrNilHooks is returned by WithHooks(nil).
	ErrNilHooks = errors.New("fiber: nil hooks")
)

// PanicError is the failure recorded for a fiber whose callable panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber: callable panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, for use with errors.Is
// and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ContractViolation is the panic value raised on misuse of the API, such as
// resuming a fiber that is not resumable. It indicates a bug in the caller and
// is never recovered by this package.
type ContractViolation struct {
	Op      string
	Message string
}

func (e *ContractViolation) Error() string {
	return "fiber: " + e.Op + ": " + e.Message
}

// violation logs a contract violation with a backtrace, then panics.
func violation(op, format string, args ...any) {
	err := &ContractViolation{Op: op, Message: fmt.Sprintf(format, args...)}
	getLogger().Crit().
		Str("op", op).
		Str("stack", string(debug.Stack())).
		Log(err.Error())
	panic(err)
}
