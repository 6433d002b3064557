// Package mem defines the memory layout constants of the target architecture.
package mem

// Size represents a memory block size in bytes.
type Size uint64

const (
	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes. It is the largest
	// region a raw string argument may span when the caller does not
	// supply its length.
	PageSize = Size(1 << PageShift)
)
