// Package kernel contains the error type shared by all kernel packages and
// helpers for accessing memory supplied across the syscall boundary.
package kernel

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that the Go allocator may not be available to us so we cannot
// use errors.New. Errors are compared by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
