// Package console implements the kernel output channel: the single shared
// transmit device that receives log records and writes to the stdout
// descriptor.
package console

import (
	"io"
	"kconsole/kernel"
	"kconsole/kernel/cpu"
	"kconsole/kernel/sync"
)

var (
	// Hardware hooks; mocked by tests.
	disableInterruptsFn = cpu.SaveFlagsAndDisableInterrupts
	restoreFlagsFn      = cpu.RestoreFlags

	// ErrNotAttached is returned when writing to a channel without an
	// attached device.
	ErrNotAttached = &kernel.Error{Module: "console", Message: "no output device attached"}

	// Output is the channel shared by the kernel logger and the stdout
	// descriptor.
	Output Channel
)

// Channel serializes access to an output device. Every hold of the channel
// lock runs with interrupt delivery disabled so an interrupt handler that
// writes to the channel can never find the lock held by the context it
// interrupted.
type Channel struct {
	lock sync.Spinlock

	// The flags saved by Lock; only accessed while the lock is held.
	flags uint64

	dev io.Writer
}

// Attach sets the device that receives all writes to the channel.
func (c *Channel) Attach(dev io.Writer) {
	c.Lock()
	c.dev = dev
	c.Unlock()
}

// Lock disables interrupts and acquires the channel lock.
func (c *Channel) Lock() {
	flags := disableInterruptsFn()
	c.lock.Acquire()
	c.flags = flags
}

// Unlock releases the channel lock and restores the interrupt state that was
// active when Lock was called.
func (c *Channel) Unlock() {
	flags := c.flags
	c.lock.Release()
	restoreFlagsFn(flags)
}

// Locked returns a writer that sends data to the attached device without
// acquiring the channel lock. It allows multi-part records to be written as a
// single critical section and must only be used between Lock and Unlock.
func (c *Channel) Locked() io.Writer {
	return (*lockedChannel)(c)
}

// BreakLock forcibly releases the channel lock regardless of its holder. It
// must only be used by code that will never return control to the holder,
// such as the kernel panic handler.
func (c *Channel) BreakLock() {
	c.lock.Release()
}

// Write implements io.Writer. The data is sent to the attached device as a
// single critical section. Errors reported by the device are returned to the
// caller.
func (c *Channel) Write(p []byte) (int, error) {
	c.Lock()
	n, err := c.Locked().Write(p)
	c.Unlock()
	return n, err
}

type lockedChannel Channel

func (c *lockedChannel) Write(p []byte) (int, error) {
	if c.dev == nil {
		return 0, ErrNotAttached
	}

	return c.dev.Write(p)
}
