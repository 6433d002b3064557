package kmain

import (
	"kconsole/kernel"
	"kconsole/kernel/hal"
	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"
	"kconsole/kernel/syscall"
	"kconsole/multiboot"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// Mocked by tests.
	detectHardwareFn = hal.DetectHardware
	panicFn          = kfmt.Panic
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code after
// setting up the GDT and a minimal g0 struct that allows Go code to use the
// 4K stack allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by
// the bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	detectHardwareFn()
	syscall.Init()

	if name := multiboot.GetBootLoaderName(); name != "" {
		klog.Infof("kconsole booted by %s", name)
	} else {
		klog.Infof("kconsole booted")
	}
	klog.Debugf("kernel image: 0x%x - 0x%x", kernelStart, kernelEnd)

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}
