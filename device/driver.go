// Package device defines the interface implemented by hardware drivers and the
// registry used by the hal package to probe for them.
package device

import (
	"io"
	"kconsole/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it. It returns nil if the
// hardware is not present.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

// The supported detect order values. Drivers with a lower value are probed
// first.
const (
	DetectOrderEarly DetectOrder = iota - 128
	DetectOrderBeforeConsole
	DetectOrderConsole
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is a driver-defined struct that is passed to RegisterDriver.
type DriverInfo struct {
	// Order specifies at which stage of the hw detection the driver's
	// probe function should be invoked.
	Order DetectOrder

	// Probe is a function that checks for the presence of a particular
	// piece of hardware and returns back a driver for it.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

// Sort orders the list by detection priority in place. Entries with the same
// priority keep their relative order. Unlike sort.Stable it does not box the
// list into an interface so it can run before the Go allocator is available.
func (l DriverInfoList) Sort() {
	for i := 1; i < l.Len(); i++ {
		for j := i; j > 0 && l.Less(j, j-1); j-- {
			l.Swap(j, j-1)
		}
	}
}

// MaxDrivers is the number of driver registrations that can be tracked.
const MaxDrivers = 16

var (
	// registeredDrivers tracks the drivers registered via a call to
	// RegisterDriver in registration order.
	registeredDrivers     [MaxDrivers]*DriverInfo
	registeredDriverCount int
)

// RegisterDriver adds the supplied driver info to the list of registered
// drivers. Drivers call this function from an init() block. Registrations
// beyond MaxDrivers are ignored and reported by returning false.
func RegisterDriver(info *DriverInfo) bool {
	if registeredDriverCount == MaxDrivers {
		return false
	}

	registeredDrivers[registeredDriverCount] = info
	registeredDriverCount++
	return true
}

// DriverList returns the list of registered drivers. The list shares its
// storage with the registry.
func DriverList() DriverInfoList {
	return registeredDrivers[:registeredDriverCount]
}
