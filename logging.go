package lthread

import (
	"sync"

	"github.com/joeycumines/logiface"
)

// Package-level logger, inherited by schedulers created without WithLogger.
// Logging is an infrastructure cross-cutting concern; scheduler instances
// share logging semantics, so a process-wide default avoids per-instance
// configuration in the common case.
var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level structured logger. Schedulers created
// afterwards without an explicit WithLogger inherit it. A nil logger (the
// initial value) disables logging; logiface treats a nil logger as disabled,
// so no call site needs to guard.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	globalLogger.logger = logger
	globalLogger.Unlock()
}

// defaultLogger returns the package-level logger, which may be nil.
func defaultLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	logger := globalLogger.logger
	globalLogger.RUnlock()
	return logger
}
