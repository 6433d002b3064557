// Package syscall implements the minimal I/O syscalls exposed to user code
// and the trap handler that decodes them.
package syscall

import (
	"kconsole/kernel/gate"
	"kconsole/kernel/klog"
)

// Num identifies a syscall.
type Num uint64

// The supported syscall numbers.
const (
	SysOpen  Num = 56
	SysClose Num = 57
	SysWrite Num = 64
)

// Init installs the syscall trap handler.
func Init() {
	gate.HandleInterrupt(gate.SyscallTrap, Dispatch)
}

// Dispatch decodes a syscall from a register snapshot and runs it. The
// syscall number is read from regs.Info and the arguments from RDI, RSI and
// RDX. The result is stored in RAX sign-extended to 64 bits; unknown
// syscalls yield -1.
func Dispatch(regs *gate.Registers) {
	var ret int32

	switch Num(regs.Info) {
	case SysOpen:
		ret = Open(uintptr(regs.RDI), uintptr(regs.RSI))
	case SysWrite:
		ret = Write(uintptr(regs.RDI), uintptr(regs.RSI), uintptr(regs.RDX))
	case SysClose:
		ret = Close(uintptr(regs.RDI))
	default:
		klog.Warnf("syscall: unknown syscall %d", regs.Info)
		ret = -1
	}

	regs.RAX = uint64(int64(ret))
}
