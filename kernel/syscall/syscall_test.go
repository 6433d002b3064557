package syscall

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"kconsole/kernel"
	"kconsole/kernel/console"
	"kconsole/kernel/gate"
	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"
	"math"
	"os"
	"testing"
	"unsafe"
)

// recordingLogger keeps the level and rendered text of each record.
type recordingLogger struct {
	levels []klog.Level
	text   bytes.Buffer
}

func (l *recordingLogger) Enabled(klog.Level) bool { return true }

func (l *recordingLogger) Log(level klog.Level, format string, args ...interface{}) {
	l.levels = append(l.levels, level)
	kfmt.Fprintf(&l.text, format, args...)
	l.text.WriteByte('\n')
}

func (l *recordingLogger) Flush() {}

func (l *recordingLogger) reset() {
	l.levels = l.levels[:0]
	l.text.Reset()
}

// klog accepts a single logger per process.
var testLogger = &recordingLogger{}

func TestMain(m *testing.M) {
	if err := klog.Install(testLogger, klog.LevelTrace); err != nil {
		fmt.Fprintln(os.Stderr, err.Message)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func TestOpen(t *testing.T) {
	specs := []struct {
		path  []byte
		flags uintptr
		exp   int32
	}{
		{cstr("stdin:"), 0, 0},
		{cstr("stdout:"), 0, 1},
		{cstr("stdout:"), 0xff, 1},
		{cstr("nope:"), 0, -1},
		{cstr(""), 0, -1},
		{cstr("stdout"), 0, -1},
		{cstr("STDIN:"), 0, -1},
		// invalid UTF-8
		{[]byte{'s', 0xff, 0}, 0, -1},
	}

	for specIndex, spec := range specs {
		if got := Open(addrOf(spec.path), spec.flags); got != spec.exp {
			t.Errorf("[spec %d] expected Open(%q) to return %d; got %d", specIndex, spec.path, spec.exp, got)
		}
	}
}

func TestOpenUnterminatedPath(t *testing.T) {
	path := bytes.Repeat([]byte{'a'}, int(kernel.MaxCStringLen)+16)
	if got := Open(addrOf(path), 0); got != -1 {
		t.Fatalf("expected Open with an unterminated path to return -1; got %d", got)
	}

	if got := Open(0, 0); got != -1 {
		t.Fatalf("expected Open with a nil path to return -1; got %d", got)
	}
}

func TestOpenPath(t *testing.T) {
	specs := []struct {
		path   string
		expFD  FD
		expErr *kernel.Error
	}{
		{"stdin:", Stdin, nil},
		{"stdout:", Stdout, nil},
		{"stderr:", -1, ErrUnknownPath},
	}

	for specIndex, spec := range specs {
		fd, err := OpenPath(spec.path)
		if fd != spec.expFD || err != spec.expErr {
			t.Errorf("[spec %d] expected OpenPath(%q) to return (%d, %v); got (%d, %v)", specIndex, spec.path, spec.expFD, spec.expErr, fd, err)
		}
	}
}

func TestWrite(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)

	var buf bytes.Buffer
	output = &buf

	specs := []struct {
		fd     uintptr
		data   []byte
		exp    int32
		expOut string
	}{
		{1, []byte("abc"), 0, "abc"},
		// no terminator is appended
		{1, []byte("line\n"), 0, "line\n"},
		{1, []byte{}, 0, ""},
		// all descriptors share the output channel
		{0, []byte("in"), 0, "in"},
		{7, []byte("any"), 0, "any"},
		// invalid UTF-8 is rejected and nothing is written
		{1, []byte{0xc3, 0x28}, -1, ""},
	}

	for specIndex, spec := range specs {
		buf.Reset()

		if got := Write(spec.fd, addrOf(spec.data), uintptr(len(spec.data))); got != spec.exp {
			t.Errorf("[spec %d] expected Write to return %d; got %d", specIndex, spec.exp, got)
		}

		if got := buf.String(); got != spec.expOut {
			t.Errorf("[spec %d] expected output channel to observe %q; got %q", specIndex, spec.expOut, got)
		}
	}
}

func TestWriteOnlyWritesRequestedLength(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)

	var buf bytes.Buffer
	output = &buf

	data := []byte("abcdef")
	if got := Write(1, addrOf(data), 3); got != 0 {
		t.Fatalf("expected Write to return 0; got %d", got)
	}

	if exp, got := []byte{'a', 'b', 'c'}, buf.Bytes(); !bytes.Equal(got, exp) {
		t.Fatalf("expected output channel to observe %q; got %q", exp, got)
	}
}

func TestWriteLengthOutOfRange(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)

	var buf bytes.Buffer
	output = &buf

	data := []byte("abc")
	specs := []uintptr{^uintptr(0), kernel.MaxTextLen + 1}

	for specIndex, length := range specs {
		if got := Write(1, addrOf(data), length); got != -1 {
			t.Errorf("[spec %d] expected Write with length 0x%x to return -1; got %d", specIndex, length, got)
		}
	}

	if buf.Len() != 0 {
		t.Fatalf("expected nothing to reach the output channel; got %q", buf.String())
	}
}

func TestEntryPointRecords(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)
	defer testLogger.reset()

	var buf bytes.Buffer
	output = &buf
	testLogger.reset()

	path := cstr("stdout:")
	data := []byte("hey")

	Open(addrOf(path), 0x41)
	Write(1, addrOf(data), uintptr(len(data)))
	Close(1)

	exp := "open: path: stdout:, flags: 0x41\n" +
		fmt.Sprintf("write: fd: 1, base: 0x%x, len: 0x3\n", addrOf(data)) +
		"close: fd: 1\n"

	if got := testLogger.text.String(); got != exp {
		t.Fatalf("expected records:\n%q\ngot:\n%q", exp, got)
	}

	for i, level := range testLogger.levels {
		if level != klog.LevelInfo {
			t.Errorf("[record %d] expected level %s; got %s", i, klog.LevelInfo, level)
		}
	}
}

func TestWriteChannelError(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)

	output = failingWriter{errors.New("transmit fault")}

	data := []byte("abc")
	if got := Write(1, addrOf(data), uintptr(len(data))); got != -1 {
		t.Fatalf("expected Write to return -1 when the channel fails; got %d", got)
	}
}

func TestDefaultOutput(t *testing.T) {
	if output != &console.Output {
		t.Fatal("expected writes to be routed to the console output channel by default")
	}
}

func TestClose(t *testing.T) {
	specs := []uintptr{0, 1, 2, 1024, math.MaxUint32, ^uintptr(0)}

	for specIndex, fd := range specs {
		if got := Close(fd); got != 0 {
			t.Errorf("[spec %d] expected Close(%d) to return 0; got %d", specIndex, fd, got)
		}
	}
}

func TestDispatch(t *testing.T) {
	defer func(orig io.Writer) { output = orig }(output)

	var buf bytes.Buffer
	output = &buf

	stdout := cstr("stdout:")
	bogus := cstr("bogus")
	data := []byte("hello")

	specs := []struct {
		regs   gate.Registers
		expRAX uint64
	}{
		{gate.Registers{Info: uint64(SysOpen), RDI: uint64(addrOf(stdout))}, 1},
		{gate.Registers{Info: uint64(SysOpen), RDI: uint64(addrOf(bogus))}, math.MaxUint64},
		{gate.Registers{Info: uint64(SysWrite), RDI: 1, RSI: uint64(addrOf(data)), RDX: uint64(len(data))}, 0},
		{gate.Registers{Info: uint64(SysClose), RDI: 3}, 0},
		{gate.Registers{Info: 9999}, math.MaxUint64},
	}

	for specIndex, spec := range specs {
		regs := spec.regs
		Dispatch(&regs)

		if regs.RAX != spec.expRAX {
			t.Errorf("[spec %d] expected RAX to be 0x%x; got 0x%x", specIndex, spec.expRAX, regs.RAX)
		}
	}

	if exp, got := "hello", buf.String(); got != exp {
		t.Fatalf("expected the write syscall to emit %q; got %q", exp, got)
	}
}

func TestInit(t *testing.T) {
	defer gate.HandleInterrupt(gate.SyscallTrap, nil)
	defer func(orig io.Writer) { output = orig }(output)

	var buf bytes.Buffer
	output = &buf

	Init()

	path := cstr("stdin:")
	regs := &gate.Registers{Info: uint64(SysOpen), RDI: uint64(addrOf(path)), RAX: 0xdead}
	gate.Dispatch(gate.SyscallTrap, regs)

	if regs.RAX != 0 {
		t.Fatalf("expected the trap handler to run the open syscall; got RAX = 0x%x", regs.RAX)
	}
}

type failingWriter struct {
	err error
}

func (w failingWriter) Write(_ []byte) (int, error) {
	return 0, w.err
}
