package kernel

import (
	"kconsole/kernel/mem"
	"math"
	"reflect"
	"unicode/utf8"
	"unsafe"
)

// MaxCStringLen is the scan bound used for NULL-terminated strings whose
// backing buffer size is not known to the caller.
const MaxCStringLen = uintptr(mem.PageSize)

// MaxTextLen is the largest length accepted by Text and Bytes: the largest
// page-aligned value that fits in an int32.
const MaxTextLen = uintptr(math.MaxInt32) &^ (uintptr(mem.PageSize) - 1)

var (
	// ErrNilPointer is returned when a string is requested from address 0.
	ErrNilPointer = &Error{Module: "kernel", Message: "nil string pointer"}

	// ErrStringNotTerminated is returned when no NULL byte is found within
	// the scan bound.
	ErrStringNotTerminated = &Error{Module: "kernel", Message: "string not terminated within bound"}

	// ErrInvalidText is returned when a byte sequence is not valid UTF-8.
	ErrInvalidText = &Error{Module: "kernel", Message: "invalid UTF-8 text"}

	// ErrTextTooLong is returned when a length exceeds MaxTextLen or the
	// range would wrap around the end of the address space.
	ErrTextTooLong = &Error{Module: "kernel", Message: "text length out of range"}
)

// CString returns a view of the NULL-terminated byte sequence starting at
// addr. At most maxLen bytes are scanned for the terminator; the terminator
// itself is not part of the returned string. The returned string shares
// memory with addr so the caller must not retain it beyond the lifetime of the
// underlying buffer.
func CString(addr, maxLen uintptr) (string, *Error) {
	if addr == 0 {
		return "", ErrNilPointer
	}

	var length uintptr
	for ; length < maxLen; length++ {
		if *(*byte)(unsafe.Pointer(addr + length)) == 0 {
			return Text(addr, length)
		}
	}

	return "", ErrStringNotTerminated
}

// Text returns a view of the length bytes starting at addr after validating
// that they contain UTF-8 text. A zero length yields an empty string
// regardless of addr.
func Text(addr, length uintptr) (string, *Error) {
	if length == 0 {
		return "", nil
	}

	if addr == 0 {
		return "", ErrNilPointer
	}

	if !validRange(addr, length) {
		return "", ErrTextTooLong
	}

	b := Bytes(addr, length)
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}

	// A string header is a prefix of a slice header so we can reuse the
	// overlay without copying.
	return *(*string)(unsafe.Pointer(&b)), nil
}

// Bytes overlays a byte slice on top of the size bytes starting at addr. It
// returns nil if size exceeds MaxTextLen or the range wraps around the end of
// the address space.
func Bytes(addr, size uintptr) []byte {
	if !validRange(addr, size) {
		return nil
	}

	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))
}

func validRange(addr, size uintptr) bool {
	return size <= MaxTextLen && addr+size >= addr
}
