// Structured error types for the execution engine.
package engine

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes engine failures.
type ErrorKind int

const (
	// KindShapeMismatch: input matrices differ in dimensions. Always
	// caller-visible, never retried, never triggers the fallback path.
	KindShapeMismatch ErrorKind = iota
	// KindAllocation: device memory could not be allocated.
	KindAllocation
	// KindTransfer: a host/device copy could not complete.
	KindTransfer
	// KindLaunch: kernel submission was rejected.
	KindLaunch
	// KindTimeout: the synchronization wait exceeded its deadline. The
	// underlying device work still runs to completion.
	KindTimeout
	// KindUnavailable: no accelerator is present or usable.
	KindUnavailable
)

// String returns the error kind as a string.
func (k ErrorKind) String() string {
	switch k {
	case KindShapeMismatch:
		return "ShapeMismatch"
	case KindAllocation:
		return "Allocation"
	case KindTransfer:
		return "Transfer"
	case KindLaunch:
		return "Launch"
	case KindTimeout:
		return "Timeout"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Error is a structured engine error with the operation that failed and
// an optional underlying cause.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed
	Message string // human-readable message
	Err     error  // underlying error if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine %s error in %s: %s (caused by: %v)",
			e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("engine %s error in %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap allows error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewShapeMismatchError creates a validation error for differing input shapes.
func NewShapeMismatchError(op, message string) error {
	return &Error{Kind: KindShapeMismatch, Op: op, Message: message}
}

// NewAllocationError creates a device memory allocation error.
func NewAllocationError(op, message string, err error) error {
	return &Error{Kind: KindAllocation, Op: op, Message: message, Err: err}
}

// NewTransferError creates a host/device copy error.
func NewTransferError(op, message string, err error) error {
	return &Error{Kind: KindTransfer, Op: op, Message: message, Err: err}
}

// NewLaunchError creates a kernel submission error.
func NewLaunchError(op, message string, err error) error {
	return &Error{Kind: KindLaunch, Op: op, Message: message, Err: err}
}

// NewTimeoutError creates a synchronization deadline error.
func NewTimeoutError(op, message string, err error) error {
	return &Error{Kind: KindTimeout, Op: op, Message: message, Err: err}
}

// NewUnavailableError creates an accelerator-unavailable error.
func NewUnavailableError(op, message string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Message: message, Err: err}
}

// KindOf extracts the kind from an engine error chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given engine error kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
