package syscall

import (
	"io"
	"kconsole/kernel"
	"kconsole/kernel/console"
	"kconsole/kernel/klog"
)

// FD is a pseudo file descriptor. Descriptors are fixed and never allocated.
type FD int32

// The supported descriptors.
const (
	Stdin  FD = 0
	Stdout FD = 1
)

var (
	// ErrUnknownPath is returned by OpenPath for paths that do not name a
	// descriptor.
	ErrUnknownPath = &kernel.Error{Module: "syscall", Message: "unknown path"}

	descriptors = [...]struct {
		path string
		fd   FD
	}{
		{"stdin:", Stdin},
		{"stdout:", Stdout},
	}

	// output receives all descriptor writes; mocked by tests.
	output io.Writer = &console.Output
)

// OpenPath returns the descriptor named by path.
func OpenPath(path string) (FD, *kernel.Error) {
	for _, d := range descriptors {
		if d.path == path {
			return d.fd, nil
		}
	}

	return -1, ErrUnknownPath
}

// Open implements the open syscall. pathAddr points to a NULL-terminated
// path. It returns the descriptor for the path or -1 if the path is unknown
// or cannot be decoded. The flags argument is not interpreted.
func Open(pathAddr, flags uintptr) int32 {
	path, err := kernel.CString(pathAddr, kernel.MaxCStringLen)
	if err != nil {
		klog.Warnf("open: bad path at 0x%x: %s", pathAddr, err.Message)
		return -1
	}

	klog.Infof("open: path: %s, flags: 0x%x", path, flags)

	fd, err := OpenPath(path)
	if err != nil {
		return -1
	}

	return int32(fd)
}

// Write implements the write syscall. The length bytes at bufAddr must
// contain UTF-8 text; they are written unchanged to the kernel output
// channel. Write returns 0 on success and -1 if the buffer cannot be decoded
// or the channel rejects the write.
//
// All descriptors share the output channel.
func Write(fd, bufAddr, length uintptr) int32 {
	klog.Infof("write: fd: %d, base: 0x%x, len: 0x%x", fd, bufAddr, length)

	if _, err := kernel.Text(bufAddr, length); err != nil {
		klog.Warnf("write: bad buffer at 0x%x: %s", bufAddr, err.Message)
		return -1
	}

	if length == 0 {
		return 0
	}

	if _, err := output.Write(kernel.Bytes(bufAddr, length)); err != nil {
		return -1
	}

	return 0
}

// Close implements the close syscall. Descriptors own no resources so Close
// always succeeds.
func Close(fd uintptr) int32 {
	klog.Infof("close: fd: %d", fd)
	return 0
}
