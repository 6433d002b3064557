// Package hal probes the registered device drivers and attaches the selected
// serial port to the kernel console.
//
// Hardware detection runs before the Go allocator is available so all HAL
// state is statically allocated and drivers are never inspected through
// runtime interface conversions.
package hal

import (
	"io"
	"kconsole/device"
	"kconsole/device/serial"
	"kconsole/kernel/console"
	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"
	"kconsole/multiboot"
)

// serialPort is an initialized serial driver that can back the console.
type serialPort struct {
	drv   device.Driver
	w     io.Writer
	index int
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeSerial *serialPort

	// serialPorts tracks the initialized serial ports in probe order.
	serialPorts     [len(serial.Ports)]serialPort
	serialPortCount int

	// activeDrivers tracks all initialized device drivers.
	activeDrivers     [device.MaxDrivers]device.Driver
	activeDriverCount int
}

var (
	devices managedDevices

	// driverOutput tags the init output of the driver being probed.
	driverOutput = kfmt.PrefixWriter{Sink: outputWriter{}}
	prefix       prefixBuffer

	// Mocked by tests.
	consoleInitFn = console.Init
	bootArgFn     = multiboot.BootArg
	serialPortFn  = asSerialPort
)

// asSerialPort returns the serial port backed by drv. It matches concrete
// driver types only.
func asSerialPort(drv device.Driver) (serialPort, bool) {
	if port, ok := drv.(*serial.Port); ok {
		return serialPort{drv: port, w: port, index: port.Index()}, true
	}

	return serialPort{}, false
}

// outputWriter sends driver init output to the kfmt output sink, or the
// early buffer until the console is attached. It writes the bytes unchanged
// instead of formatting them again as they may alias the kfmt buffers.
type outputWriter struct{}

func (outputWriter) Write(p []byte) (int, error) {
	return kfmt.WriteOutput(p)
}

// prefixBuffer holds the output prefix of the driver being probed. Prefixes
// that do not fit are truncated.
type prefixBuffer struct {
	data [64]byte
	n    int
}

func (b *prefixBuffer) Write(p []byte) (int, error) {
	n := copy(b.data[b.n:], p)
	b.n += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (b *prefixBuffer) Bytes() []byte { return b.data[:b.n] }

func (b *prefixBuffer) Reset() { b.n = 0 }

// ActiveSerial returns the serial port attached to the console or nil if no
// port has been attached.
func ActiveSerial() device.Driver {
	if devices.activeSerial == nil {
		return nil
	}

	return devices.activeSerial.drv
}

// DetectHardware probes for hardware devices, initializes the appropriate
// drivers and attaches the serial port selected by the "console" boot command
// line argument to the kernel console. If no port was requested, or the
// requested port is not present, the first detected port is used.
func DetectHardware() {
	// Get driver list and sort by detection priority. Drivers with the
	// same priority are probed in registration order.
	drivers := device.DriverList()
	drivers.Sort()

	probe(drivers)
	attachFallbackConsole()
}

// attachFallbackConsole attaches the first initialized serial port to the
// console if probing did not attach the requested one.
func attachFallbackConsole() {
	if devices.activeSerial == nil && devices.serialPortCount != 0 {
		attachConsole(&devices.serialPorts[0])
	}
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		prefix.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&prefix, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		driverOutput.Prefix = prefix.Bytes()
		driverOutput.Reset()

		if err := drv.DriverInit(&driverOutput); err != nil {
			kfmt.Fprintf(&driverOutput, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&driverOutput, "initialized\n")
		onDriverInit(info, drv)

		if devices.activeDriverCount < len(devices.activeDrivers) {
			devices.activeDrivers[devices.activeDriverCount] = drv
			devices.activeDriverCount++
		}
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(_ *device.DriverInfo, drv device.Driver) {
	port, ok := serialPortFn(drv)
	if !ok || devices.serialPortCount == len(devices.serialPorts) {
		return
	}

	slot := &devices.serialPorts[devices.serialPortCount]
	*slot = port
	devices.serialPortCount++

	if devices.activeSerial != nil {
		return
	}

	name, _ := bootArgFn("console")
	if index, ok := serial.PortIndex(name); ok && index == port.index {
		attachConsole(slot)
	}
}

// attachConsole connects the kernel console to port using the max log level
// requested by the "loglevel" boot command line argument.
func attachConsole(port *serialPort) {
	if err := consoleInitFn(port.w, configuredLogLevel()); err != nil {
		kfmt.Printf("[hal] console attach failed: %s\n", err.Message)
		return
	}

	devices.activeSerial = port
	klog.Debugf("[hal] console attached to %s", port.drv.DriverName())
}

// configuredLogLevel returns the level requested via the "loglevel" boot
// command line argument or klog.LevelTrace if none was requested.
func configuredLogLevel() klog.Level {
	value, _ := bootArgFn("loglevel")
	if level, ok := klog.ParseLevel(value); ok {
		return level
	}

	return klog.LevelTrace
}
