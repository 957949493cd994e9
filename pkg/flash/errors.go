package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrMisalignedAccess is returned when an address or length is not word aligned.
	ErrMisalignedAccess = errors.New("misaligned flash access")
	// ErrOutOfRange is returned when an access falls outside the region geometry.
	ErrOutOfRange = errors.New("flash access out of range")
	// ErrEraseFailed is returned when a sector erase reports an error.
	ErrEraseFailed = errors.New("flash erase failed")
	// ErrWriteFailed is returned when programming a word fails.
	ErrWriteFailed = errors.New("flash write failed")
	// ErrNotErased is returned by Memory when programming a word that is not all ones.
	ErrNotErased = errors.New("target word not erased")
)

// Error describes a failed flash operation.
type Error struct {
	Op     string
	Addr   uint32
	Sector uint32
	Err    error
	Cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("flash %s at 0x%08X: %v", e.Op, e.Addr, e.Err)
	if e.Op == "erase" {
		msg = fmt.Sprintf("flash erase of sector %d: %v", e.Sector, e.Err)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying medium error.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}
