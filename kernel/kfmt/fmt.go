package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// numFmtBuf holds the digits of a formatted integer.
	numFmtBuf [maxBufSize]byte
	hexDigits = "0123456789abcdef"

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer is a ring buffer that stores Printf output before the
	// serial console is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// outputLock replaces outputSink when the sink is shared between
	// execution contexts.
	outputLock LockableWriter
)

// LockableWriter is implemented by output sinks that are shared between
// execution contexts. Printf holds the sink lock for the duration of a call
// so that the shared formatting buffers of this package and the emitted
// bytes of a single call are never interleaved with another caller.
type LockableWriter interface {
	io.Writer

	// Lock enters the sink's critical section.
	Lock()

	// Unlock leaves the sink's critical section.
	Unlock()

	// Locked returns a writer that bypasses the sink lock. It must only
	// be used between calls to Lock and Unlock.
	Locked() io.Writer

	// BreakLock forcibly releases the lock regardless of its holder.
	BreakLock()
}

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputLock = nil
	outputSink = w
	if w != nil {
		earlyPrintBuffer.WriteTo(w)
	}
}

// SetLockableOutputSink behaves like SetOutputSink but every write to w,
// including the replay of the earlyPrintBuffer, happens with the w lock held.
//
// The sink is kept in its own variable instead of being discovered with a
// type assertion on the io.Writer passed to SetOutputSink; resolving an
// interface at runtime needs the itab tables which are not set up when the
// kernel boots.
func SetLockableOutputSink(w LockableWriter) {
	if w == nil {
		SetOutputSink(nil)
		return
	}

	outputSink = nil
	outputLock = w
	w.Lock()
	earlyPrintBuffer.WriteTo(w.Locked())
	w.Unlock()
}

// LockOutput enters the critical section of the output sink, if it has one,
// and returns the writer to use until the matching UnlockOutput call. A nil
// writer selects the early ring buffer when passed to Fprintf.
func LockOutput() io.Writer {
	if outputLock != nil {
		outputLock.Lock()
		return outputLock.Locked()
	}

	return outputSink
}

// UnlockOutput leaves the critical section entered by LockOutput.
func UnlockOutput() {
	if outputLock != nil {
		outputLock.Unlock()
	}
}

// WriteOutput writes p unchanged to the output sink, holding the sink lock if
// it has one, or to the early ring buffer if no sink is set. It does not
// touch the formatting buffers of this package so it may be called by
// writers that receive output from Fprintf.
func WriteOutput(p []byte) (int, error) {
	var (
		n   int
		err error
	)

	if w := LockOutput(); w != nil {
		n, err = w.Write(p)
	} else {
		n, err = earlyPrintBuffer.Write(p)
	}

	UnlockOutput()
	return n, err
}

// Printf writes formatted output to the output sink without allocating
// memory, so it can be used before the Go allocator is initialized. Until a
// sink is set, the output is kept in a ring buffer that SetOutputSink
// replays.
//
// The supported verbs are a subset of the ones understood by fmt.Printf:
//
//	%s  string or []byte, left-padded with spaces to the width
//	%d  base 10 integer, left-padded with spaces to the width
//	%o  base 8 integer, left-padded with zeroes to the width
//	%x  base 16 integer (lower-case), left-padded with zeroes to the width
//	%t  "true" or "false"
//	%%  a literal percent sign
//
// A width is an optional decimal number immediately preceding the verb. All
// built-in integer types are accepted. Arguments are never checked for
// io.Stringer since the itables may not be initialized yet, and %p is not
// supported since it requires the reflect package whose use makes the
// compiler emit allocating runtime.convT2E calls.
//
// If the sink was set with SetLockableOutputSink, the whole call runs with
// the sink lock held.
func Printf(format string, args ...interface{}) {
	w := LockOutput()
	Fprintf(w, format, args...)
	UnlockOutput()
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. A nil writer selects the early ring buffer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex    int
		litStart, i int
	)

	for i < len(format) {
		if format[i] != '%' {
			i++
			continue
		}

		writeLiteral(w, format, litStart, i)

		padLen := 0
		for i++; ; i++ {
			if i == len(format) {
				// reached end of formatting string without finding a verb
				doWrite(w, errNoVerb)
				break
			}

			ch := format[i]
			if ch >= '0' && ch <= '9' {
				padLen = padLen*10 + int(ch-'0')
				continue
			}

			switch ch {
			case '%':
				singleByte[0] = '%'
				doWrite(w, singleByte)
			case 'd', 'o', 'x', 's', 't':
				if argIndex >= len(args) {
					doWrite(w, errMissingArg)
					break
				}

				fmtArg(w, ch, args[argIndex], padLen)
				argIndex++
			default:
				doWrite(w, errNoVerb)
			}
			break
		}

		i++
		litStart = i
	}

	writeLiteral(w, format, litStart, len(format))

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// writeLiteral emits format[from:to]. Slicing the string and passing it to
// doWrite would allocate, so the bytes are written one at a time.
func writeLiteral(w io.Writer, format string, from, to int) {
	for ; from < to; from++ {
		singleByte[0] = format[from]
		doWrite(w, singleByte)
	}
}

// fmtArg formats a single argument for the supplied verb.
func fmtArg(w io.Writer, verb byte, arg interface{}, padLen int) {
	switch verb {
	case 'o':
		fmtInt(w, arg, 8, padLen)
	case 'd':
		fmtInt(w, arg, 10, padLen)
	case 'x':
		fmtInt(w, arg, 16, padLen)
	case 's':
		fmtString(w, arg, padLen)
	case 't':
		fmtBool(w, arg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch str := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(str))
		writeLiteral(w, str, 0, len(str))
	case []byte:
		fmtRepeat(w, ' ', padLen-len(str))
		doWrite(w, str)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for ; count > 0; count-- {
		doWrite(w, singleByte)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. Base 10 values are padded with spaces and
// the sign is placed right before the first digit; base 8 and 16 values are
// padded with zeroes.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    = byte('0')
	)

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uintptr:
		uval = uint64(t)
	case int8:
		uval, negative = absInt(int64(t))
	case int16:
		uval, negative = absInt(int64(t))
	case int32:
		uval, negative = absInt(int64(t))
	case int64:
		uval, negative = absInt(t)
	case int:
		uval, negative = absInt(int64(t))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if base == 10 {
		padCh = ' '
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	// digits are generated right to left starting at the end of numFmtBuf
	pos := maxBufSize
	for {
		pos--
		numFmtBuf[pos] = hexDigits[uval%uint64(base)]
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}

	// space padding goes in front of the sign; zero padding after it
	if negative && padCh == ' ' {
		pos--
		numFmtBuf[pos] = '-'
	}

	for maxBufSize-pos < padLen {
		pos--
		numFmtBuf[pos] = padCh
	}

	if negative && padCh == '0' {
		pos--
		numFmtBuf[pos] = '-'
	}

	doWrite(w, numFmtBuf[pos:maxBufSize])
}

// absInt returns the magnitude of v and whether v is negative.
func absInt(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without it the compiler flags p as escaping
// through the unknown io.Writer and every Printf call ends up in an allocating
// runtime.convT2E, which crashes the kernel before the Go allocator is up.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis; see runtime/stubs.go.
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
