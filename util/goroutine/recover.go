package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"jobboard/metrics"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// PanicHandler is told about a recovered panic after it has been logged
type PanicHandler func(name string, value interface{})

// Recover recovers from panics in goroutines and logs them.
// If logger is nil, falls back to stderr to ensure panic is recorded.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		report(name, r, logger)
	}
}

// RecoverThen is Recover followed by a call to handler, which decides what
// the panic means for the process. Must be deferred directly.
func RecoverThen(name string, logger *zap.SugaredLogger, handler PanicHandler) {
	if r := recover(); r != nil {
		report(name, r, logger)
		if handler != nil {
			handler(name, r)
		}
	}
}

// Go runs fn in a new goroutine guarded by RecoverThen
func Go(name string, logger *zap.SugaredLogger, handler PanicHandler, fn func()) {
	go func() {
		defer RecoverThen(name, logger, handler)
		fn()
	}()
}

func report(name string, r interface{}, logger *zap.SugaredLogger) {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)
	metrics.PanicsRecovered.WithLabelValues("goroutine").Inc()

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(buf[:n]))
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n",
		name, r, string(buf[:n]))
}
