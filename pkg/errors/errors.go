// Package errors provides the structured error types used throughout the
// store. Errors carry an ErrorCode for programmatic handling plus optional
// builder-style decorations (segment id, byte offset, file path, free-form
// details) that make failures traceable without parsing message strings.
// All types participate in the standard errors.Is / errors.As chains via
// Unwrap.
package errors

import stdErrors "errors"

// coder is implemented by every error type in this package.
type coder interface {
	Code() ErrorCode
}

// CodeOf walks the error chain and returns the first ErrorCode it finds.
// Errors that never pass through this package report ErrorCodeInternal.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if c, ok := err.(coder); ok {
			return c.Code()
		}
		err = stdErrors.Unwrap(err)
	}
	return ErrorCodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if c, ok := err.(coder); ok && c.Code() == code {
			return true
		}
		err = stdErrors.Unwrap(err)
	}
	return false
}

// IsKeyNotFound reports whether err is a remove-of-absent-key failure.
func IsKeyNotFound(err error) bool {
	return HasCode(err, ErrorCodeKeyNotFound)
}

// IsCorruptLog reports whether err indicates an unparseable segment.
func IsCorruptLog(err error) bool {
	return HasCode(err, ErrorCodeCorruptLog)
}
