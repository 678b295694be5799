package trust

import (
	"code.attlink.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error   = errorFlag("trust: error")
	noError = errorFlag("")

	// ErrNotFound flags store lookups that matched no record.
	ErrNotFound = errorFlag("trust: record not found")

	// ErrUnknownIdentity flags peers no admitted record matches.
	ErrUnknownIdentity = errorFlag("trust: unknown identity")

	// ErrOutdatedSvn flags peers running below the admitted security version.
	ErrOutdatedSvn = errorFlag("trust: outdated security version")

	// ErrDebugNotAllowed flags debug enclaves evaluated against a production record.
	ErrDebugNotAllowed = errorFlag("trust: debug enclave not allowed")
)

// Error implements the error interface.
func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if Error == self || noError == self {
		return nil
	}
	return Error
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}
