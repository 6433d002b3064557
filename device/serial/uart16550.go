// Package serial provides a driver for 16550-compatible UARTs that is used as
// the transmit device of the kernel console.
package serial

import (
	"io"
	"kconsole/device"
	"kconsole/kernel"
	"kconsole/kernel/cpu"
	"kconsole/kernel/kfmt"
	"kconsole/multiboot"
)

// Register offsets relative to the port base address.
const (
	regData        = 0 // THR (write) / RBR (read); divisor low byte when DLAB is set
	regIntEnable   = 1 // IER; divisor high byte when DLAB is set
	regFifoControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	regScratch     = 7
)

const (
	lcrDLAB = 0x80
	lcr8N1  = 0x03

	// enable and clear both FIFOs; 14-byte receive threshold
	fcrEnable = 0xc7

	mcrNormal   = 0x0f // DTR, RTS, OUT1, OUT2
	mcrLoopback = 0x1e // RTS, OUT1, OUT2, LOOP

	lsrTHREmpty = 0x20

	// uartClock is the base rate that the baud divisor is applied to.
	uartClock = 115200

	// DefaultBaud is used when no valid baud rate is configured.
	DefaultBaud = 115200

	// txSpinLimit bounds the number of LSR polls while waiting for the
	// transmit holding register to drain.
	txSpinLimit = 1 << 16

	loopbackTestByte = 0xae
	scratchTestByte  = 0x5a
)

var (
	// Hardware hooks; mocked by tests.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	bootArgFn       = multiboot.BootArg

	// ErrTransmitTimeout is returned when the transmit holding register
	// does not drain within txSpinLimit polls.
	ErrTransmitTimeout = &kernel.Error{Module: "serial", Message: "transmit timeout"}

	// ErrSelfTestFailed is returned by DriverInit when the loopback test
	// does not echo the test byte.
	ErrSelfTestFailed = &kernel.Error{Module: "serial", Message: "loopback self-test failed"}

	// Ports lists the I/O base addresses of the standard PC serial ports
	// in ttyS order.
	Ports = [...]uint16{0x3f8, 0x2f8, 0x3e8, 0x2e8}
)

// Port is a driver for a single 16550 UART. It implements io.Writer and
// io.ByteWriter; bytes are transmitted unchanged.
type Port struct {
	index int
	base  uint16
	baud  uint32
}

// NewPort returns a driver for the ttyS<index> port using the supplied baud
// rate. It does not touch the hardware; DriverInit programs the UART.
func NewPort(index int, baud uint32) *Port {
	p := &Port{}
	p.setup(index, baud)
	return p
}

func (p *Port) setup(index int, baud uint32) {
	if baud == 0 || baud > uartClock || uartClock%baud != 0 {
		baud = DefaultBaud
	}

	p.index = index
	p.base = Ports[index]
	p.baud = baud
}

// Index returns the ttyS index of the port.
func (p *Port) Index() int {
	return p.index
}

// Baud returns the configured baud rate.
func (p *Port) Baud() uint32 {
	return p.baud
}

// WriteByte implements io.ByteWriter.
func (p *Port) WriteByte(b byte) error {
	for spins := 0; portReadByteFn(p.base+regLineStatus)&lsrTHREmpty == 0; spins++ {
		if spins == txSpinLimit {
			return ErrTransmitTimeout
		}
	}

	portWriteByteFn(p.base+regData, b)
	return nil
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	for count, b := range data {
		if err := p.WriteByte(b); err != nil {
			return count, err
		}
	}

	return len(data), nil
}

// DriverName returns the name of this driver.
func (p *Port) DriverName() string {
	return portNames[p.index]
}

// DriverVersion returns the version of this driver.
func (p *Port) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit programs the UART for 8N1 operation at the configured baud rate
// and verifies it using the loopback mode.
func (p *Port) DriverInit(w io.Writer) *kernel.Error {
	divisor := uint16(uartClock / p.baud)

	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineControl, lcrDLAB)
	portWriteByteFn(p.base+regData, uint8(divisor))
	portWriteByteFn(p.base+regIntEnable, uint8(divisor>>8))
	portWriteByteFn(p.base+regLineControl, lcr8N1)
	portWriteByteFn(p.base+regFifoControl, fcrEnable)

	portWriteByteFn(p.base+regModemCtrl, mcrLoopback)
	portWriteByteFn(p.base+regData, loopbackTestByte)
	if portReadByteFn(p.base+regData) != loopbackTestByte {
		return ErrSelfTestFailed
	}

	portWriteByteFn(p.base+regModemCtrl, mcrNormal)
	kfmt.Fprintf(w, "io 0x%x, %d baud\n", p.base, p.baud)
	return nil
}

var portNames = [...]string{"ttyS0", "ttyS1", "ttyS2", "ttyS3"}

// PortIndex returns the ttyS index for a device name such as "ttyS1". The
// second return value is false if name does not refer to a supported port.
func PortIndex(name string) (int, bool) {
	for i, n := range portNames {
		if n == name {
			return i, true
		}
	}

	return 0, false
}

// ports holds the drivers returned by the probe functions. They are
// statically allocated as probing runs before the Go allocator is available.
var ports [len(Ports)]Port

// probePort returns the driver for the ttyS<index> port or nil if the port
// is not present. A port is considered present if its scratch register
// retains a written value.
func probePort(index int) device.Driver {
	base := Ports[index]
	portWriteByteFn(base+regScratch, scratchTestByte)
	if portReadByteFn(base+regScratch) != scratchTestByte {
		return nil
	}

	ports[index].setup(index, configuredBaud())
	return &ports[index]
}

func probeTTYS0() device.Driver { return probePort(0) }
func probeTTYS1() device.Driver { return probePort(1) }
func probeTTYS2() device.Driver { return probePort(2) }
func probeTTYS3() device.Driver { return probePort(3) }

var driverInfos = [len(Ports)]device.DriverInfo{
	{Order: device.DetectOrderEarly, Probe: probeTTYS0},
	{Order: device.DetectOrderEarly, Probe: probeTTYS1},
	{Order: device.DetectOrderEarly, Probe: probeTTYS2},
	{Order: device.DetectOrderEarly, Probe: probeTTYS3},
}

// configuredBaud returns the baud rate requested via the "baud" boot command
// line argument or 0 if none was requested or the value is not a decimal
// number.
func configuredBaud() uint32 {
	v, ok := bootArgFn("baud")
	if !ok || v == "" || len(v) > 7 {
		return 0
	}

	var baud uint32
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0
		}
		baud = baud*10 + uint32(v[i]-'0')
	}

	return baud
}

func init() {
	for i := range driverInfos {
		device.RegisterDriver(&driverInfos[i])
	}
}
