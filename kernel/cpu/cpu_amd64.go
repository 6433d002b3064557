package cpu

// FlagInterruptEnable is the IF bit of the RFLAGS register. When set, the
// CPU accepts maskable hardware interrupts.
const FlagInterruptEnable = uint64(1 << 9)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// SaveFlagsAndDisableInterrupts returns the current value of the RFLAGS
// register and then disables interrupt handling. The returned value should
// be passed to RestoreFlags when the critical section ends.
func SaveFlagsAndDisableInterrupts() uint64

// RestoreFlags loads the supplied value into the RFLAGS register. Interrupt
// handling is re-enabled only if it was enabled when the flags were saved.
func RestoreFlags(flags uint64)

// InterruptsEnabled returns true if the supplied RFLAGS value has the
// interrupt enable bit set.
func InterruptsEnabled(flags uint64) bool {
	return flags&FlagInterruptEnable != 0
}

// Halt stops instruction execution.
func Halt()

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8
