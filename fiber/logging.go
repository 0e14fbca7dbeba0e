package fiber

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var (
	// package logger, used by fibers and as the default for schedulers
	globalLogger struct {
		sync.RWMutex
		logger *logiface.Logger[logiface.Event]
	}
)

// SetLogger sets the package logger. A nil logger disables logging.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getLogger safely retrieves the package logger, which may be nil.
func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// NewDefaultLogger returns a JSON lines logger writing to w (os.Stderr if
// nil), enabled up to level.
func NewDefaultLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
