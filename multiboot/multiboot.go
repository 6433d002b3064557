// Package multiboot extracts the kernel configuration passed by a
// multiboot2-compliant bootloader.
package multiboot

import (
	"kconsole/kernel"
	"strings"
	"unsafe"
)

var infoData uintptr

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
)

// tagHeader describes the header the preceedes each tag.
type tagHeader struct {
	// The type of the tag
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. Multiboot2 places each tag at an 8-byte aligned address.
	size uint32
}

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// BootArg looks up key in the command line passed to the kernel. Arguments
// are separated by whitespace; an argument of the form "key=value" maps key
// to value whereas a bare "key" maps key to itself. Malformed arguments are
// ignored and the last occurrence of a repeated key wins.
//
// The command line is scanned on every call and the returned value points
// into the multiboot info data, so BootArg can be used before the Go
// allocator is available.
func BootArg(key string) (string, bool) {
	var (
		value string
		found bool
	)

	cmdLine, _ := tagString(tagBootCmdLine)
	for start, end := 0, 0; start < len(cmdLine); start = end + 1 {
		for start < len(cmdLine) && isSpace(cmdLine[start]) {
			start++
		}

		for end = start; end < len(cmdLine) && !isSpace(cmdLine[end]); end++ {
		}

		if k, v, ok := splitArg(cmdLine[start:end]); ok && k == key {
			value, found = v, true
		}
	}

	return value, found
}

// splitArg splits a single command line argument into its key and value.
func splitArg(arg string) (string, string, bool) {
	if arg == "" {
		return "", "", false
	}

	key, value, hasValue := strings.Cut(arg, "=")
	switch {
	case !hasValue: // nofoo
		return arg, arg, true
	case strings.IndexByte(value, '=') != -1: // foo=bar=baz
		return "", "", false
	default: // foo=bar
		return key, value, true
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// GetBootLoaderName returns the name of the bootloader that loaded the kernel
// or an empty string if the bootloader did not provide one.
func GetBootLoaderName() string {
	name, _ := tagString(tagBootLoaderName)
	return name
}

// tagString decodes the NULL-terminated string stored in the contents of the
// specified tag. The terminator must be located within the tag.
func tagString(tagType tagType) (string, *kernel.Error) {
	curPtr, size := findTagByType(tagType)
	if size == 0 {
		return "", nil
	}

	return kernel.CString(curPtr, uintptr(size))
}

// findTagByType scans the multiboot info data looking for the start of of the
// specified type. It returns a pointer to the tag contents start offset and
// the content length exluding the tag header.
//
// If the tag is not present in the multiboot info, findTagSection will return
// back (0,0).
func findTagByType(tagType tagType) (uintptr, uint32) {
	if infoData == 0 {
		return 0, 0
	}

	var ptrTagHeader *tagHeader

	curPtr := infoData + 8
	for ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)); ptrTagHeader.tagType != tagMbSectionEnd; ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)) {
		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr(int32(ptrTagHeader.size+7) & ^7)
	}

	return 0, 0
}
