// Package klog provides the process-wide leveled logging front-end used by
// kernel code. Records are forwarded to a single Logger that is installed
// once during startup.
package klog

import (
	"kconsole/kernel"
	"sync/atomic"
	"unsafe"
)

// Logger is implemented by log sinks that can be installed via Install.
type Logger interface {
	// Enabled returns true if records with the supplied level should be
	// passed to Log.
	Enabled(Level) bool

	// Log emits a record. The format string uses the verbs supported by
	// kfmt.Printf. The args may live on the caller's stack so Log must not
	// retain them after it returns.
	Log(level Level, format string, args ...interface{})

	// Flush writes out any buffered records.
	Flush()
}

const (
	stateUninstalled uint32 = iota
	stateInstalling
	stateInstalled
)

var (
	// ErrAlreadyInstalled is returned by Install when a logger has already
	// been installed.
	ErrAlreadyInstalled = &kernel.Error{Module: "klog", Message: "logger already installed"}

	state    uint32
	logger   Logger
	maxLevel = uint32(LevelTrace)
)

// Install registers l as the process-wide log sink and sets the maximum level
// that is forwarded to it. Only the first call succeeds; any subsequent call
// returns ErrAlreadyInstalled and leaves the active logger untouched.
func Install(l Logger, max Level) *kernel.Error {
	if !atomic.CompareAndSwapUint32(&state, stateUninstalled, stateInstalling) {
		return ErrAlreadyInstalled
	}

	logger = l
	SetMaxLevel(max)
	atomic.StoreUint32(&state, stateInstalled)
	return nil
}

// SetMaxLevel updates the least severe level that is forwarded to the
// installed logger.
func SetMaxLevel(l Level) {
	atomic.StoreUint32(&maxLevel, uint32(l))
}

// MaxLevel returns the least severe level that is forwarded to the installed
// logger.
func MaxLevel() Level {
	return Level(atomic.LoadUint32(&maxLevel))
}

// Installed returns true if a logger has been installed.
func Installed() bool {
	return atomic.LoadUint32(&state) == stateInstalled
}

// Errorf logs a record with LevelError.
func Errorf(format string, args ...interface{}) { logf(LevelError, format, args...) }

// Warnf logs a record with LevelWarn.
func Warnf(format string, args ...interface{}) { logf(LevelWarn, format, args...) }

// Infof logs a record with LevelInfo.
func Infof(format string, args ...interface{}) { logf(LevelInfo, format, args...) }

// Debugf logs a record with LevelDebug.
func Debugf(format string, args ...interface{}) { logf(LevelDebug, format, args...) }

// Tracef logs a record with LevelTrace.
func Tracef(format string, args ...interface{}) { logf(LevelTrace, format, args...) }

// Flush flushes the installed logger. It is a no-op if no logger is
// installed.
func Flush() {
	if !Installed() {
		return
	}
	logger.Flush()
}

func logf(level Level, format string, args ...interface{}) {
	if !Installed() || level > MaxLevel() || !logger.Enabled(level) {
		return
	}

	// Hide args from escape analysis. Otherwise passing them to the
	// Logger interface moves every caller's arguments to the heap.
	logger.Log(level, format, *(*[]interface{})(noEscape(unsafe.Pointer(&args)))...)
}

// noEscape hides a pointer from escape analysis; see runtime/stubs.go.
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
