package console

import (
	"io"
	"kconsole/kernel"
	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"
)

// Logger is a klog.Logger that renders colored records to a Channel.
type Logger struct {
	ch *Channel
}

// NewLogger returns a Logger that writes to ch.
func NewLogger(ch *Channel) *Logger {
	return &Logger{ch: ch}
}

// Enabled implements klog.Logger. Level filtering is handled by klog so all
// levels are enabled.
func (l *Logger) Enabled(klog.Level) bool {
	return true
}

// Log implements klog.Logger. The whole record is written while holding the
// channel lock.
func (l *Logger) Log(level klog.Level, format string, args ...interface{}) {
	l.ch.Lock()
	kfmt.FprintRecord(l.ch.Locked(), level, format, args...)
	l.ch.Unlock()
}

// Flush implements klog.Logger. The channel is unbuffered so this is a no-op.
func (l *Logger) Flush() {}

var logger = Logger{ch: &Output}

// Init installs the kernel logger, attaches dev to the Output channel and
// redirects kfmt output (including any buffered early output) to it. It
// returns klog.ErrAlreadyInstalled if called more than once; in that case
// the Output channel is left untouched.
func Init(dev io.Writer, maxLevel klog.Level) *kernel.Error {
	if err := klog.Install(&logger, maxLevel); err != nil {
		return err
	}

	Output.Attach(dev)
	kfmt.SetLockableOutputSink(&Output)
	return nil
}
