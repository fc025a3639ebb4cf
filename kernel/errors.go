package kernel

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes kernel errors.
type ErrorCode string

const (
	// CodeTimeRegression indicates the schedule would move backward in
	// primary time. Fatal: never recovered locally.
	CodeTimeRegression ErrorCode = "TIME_REGRESSION"

	// CodeNegativeTimeDelta indicates Combine was given a delta whose
	// primary component is negative.
	CodeNegativeTimeDelta ErrorCode = "NEGATIVE_TIME_DELTA"

	// CodeEmptyQueueAccess indicates a queue primitive ran with no active
	// working queue on the execution scratch.
	CodeEmptyQueueAccess ErrorCode = "EMPTY_QUEUE_ACCESS"

	// CodeInvalidEventTarget indicates an append onto a non-composable
	// node (a plain value or function leaf that is not a sequence).
	CodeInvalidEventTarget ErrorCode = "INVALID_EVENT_TARGET"

	// CodeNoHandlerInstalled indicates OpExec ran outside a driver call,
	// with no ambient handler on the context.
	CodeNoHandlerInstalled ErrorCode = "NO_HANDLER_INSTALLED"

	// CodeUnknownOperation indicates an operation key absent from the
	// merged dispatch table.
	CodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// CodeUserFault indicates an error raised from inside a unit body.
	// This is the only locally recoverable class (via a queue's on-error
	// hook).
	CodeUserFault ErrorCode = "USER_FAULT"
)

// Error is the structured error type carried by every kernel failure.
// Snapshot, when set, holds the last successfully computed context with the
// execution scratch stripped, for postmortem inspection.
type Error struct {
	Code     ErrorCode
	Message  string
	At       TimeVec // coordinate being executed when the failure occurred
	Path     Path    // logical location, when known
	Cause    error   // wrapped user error for USER_FAULT
	Snapshot *Context
}

func (e *Error) Error() string {
	switch {
	case len(e.At) > 0 && len(e.Path) > 0:
		return fmt.Sprintf("%s: %s (at=%v, path=%v)", e.Code, e.Message, e.At, e.Path)
	case len(e.At) > 0:
		return fmt.Sprintf("%s: %s (at=%v)", e.Code, e.Message, e.At)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is (or wraps) a kernel Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}

// userFault wraps an arbitrary error raised from a unit body.
func userFault(err error, at TimeVec, path Path) *Error {
	var ke *Error
	if errors.As(err, &ke) {
		return ke
	}
	return &Error{
		Code:    CodeUserFault,
		Message: err.Error(),
		At:      at,
		Path:    path,
		Cause:   err,
	}
}
