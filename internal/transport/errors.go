package transport

import (
	"code.attlink.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error   = errorFlag("transport: error")
	noError = errorFlag("")

	// ValidationError flags messages whose Check method errored.
	ValidationError = errorFlag("transport: invalid message")

	// SerializationError flags Marshal/Unmarshal failures.
	SerializationError = errorFlag("transport: serialization failure")

	// EncryptionError flags cipher failures on protected messages.
	EncryptionError = errorFlag("transport: encryption failure")

	// ReadLimitError flags reads over a LimitTransport read limit.
	ReadLimitError = errorFlag("transport: read limit reached")

	// WriteLimitError flags writes over a LimitTransport write limit.
	WriteLimitError = errorFlag("transport: write limit reached")
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
