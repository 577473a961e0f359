package ledger

import (
	"errors"
	"fmt"
)

// LedgerError represents a rejected ledger operation.
//
// Ledger errors include:
//   - Invalid rewind target: target is not strictly behind the current position
//   - Rewind depth exceeded: target is further back than the rewindable window
//
// Storage faults are not LedgerErrors; they are wrapped and propagated as-is.
type LedgerError struct {
	// Code identifies the error category.
	Code LedgerErrorCode

	// Message is a human-readable description.
	Message string

	// Position is the ledger position at the time of the rejection.
	Position int

	// Target is the requested position (for rewind errors).
	Target int
}

// LedgerErrorCode categorizes ledger errors.
type LedgerErrorCode string

const (
	// ErrCodeInvalidRewindTarget indicates the target is at or beyond the
	// current position. Rewind only moves backward.
	ErrCodeInvalidRewindTarget LedgerErrorCode = "INVALID_REWIND_TARGET"

	// ErrCodeRewindDepthExceeded indicates the target is beyond the
	// rewindable window (one slot is reserved for verification).
	ErrCodeRewindDepthExceeded LedgerErrorCode = "REWIND_DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s (position=%d, target=%d)", e.Code, e.Message, e.Position, e.Target)
}

// IsInvalidRewindTarget returns true if the error is an invalid rewind
// target rejection. Uses errors.As to handle wrapped errors.
func IsInvalidRewindTarget(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == ErrCodeInvalidRewindTarget
	}
	return false
}

// IsRewindDepthExceeded returns true if the error is a rewind depth
// rejection. Uses errors.As to handle wrapped errors.
func IsRewindDepthExceeded(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == ErrCodeRewindDepthExceeded
	}
	return false
}

func newInvalidRewindTargetError(position, target int) *LedgerError {
	return &LedgerError{
		Code:     ErrCodeInvalidRewindTarget,
		Message:  "rewind target must be strictly behind the current position",
		Position: position,
		Target:   target,
	}
}

func newRewindDepthExceededError(position, target, depth int) *LedgerError {
	return &LedgerError{
		Code:     ErrCodeRewindDepthExceeded,
		Message:  fmt.Sprintf("rewind depth %d exceeds the rewindable window", depth),
		Position: position,
		Target:   target,
	}
}
