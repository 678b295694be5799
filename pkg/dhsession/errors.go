package dhsession

import (
	"code.attlink.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("dhsession: error")

	// ErrOrderingViolation flags an operation invoked in the wrong session Stage.
	// The Session is left unchanged, the faulty call is a caller programming error.
	ErrOrderingViolation = errorFlag("dhsession: ordering violation")

	// ErrCryptoFailure flags a failed cryptographic primitive (key generation,
	// point decoding, key derivation). Fatal for the Session.
	ErrCryptoFailure = errorFlag("dhsession: crypto failure")

	// ErrAttestationFailure flags a failed attestation report generation or
	// verification, including a report whose bound data does not match the
	// session transcript. Fatal for the Session.
	ErrAttestationFailure = errorFlag("dhsession: attestation failure")

	// ErrAuthenticationFailure flags a message MAC mismatch. It shall be treated
	// as a potential active attack. Fatal for the Session.
	ErrAuthenticationFailure = errorFlag("dhsession: authentication failure")

	// ErrMalformedReport flags structurally invalid attestation report content.
	ErrMalformedReport = errorFlag("dhsession: malformed report")

	noError = errorFlag("")
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

// newFlagError returns a utils.RaisedErr{} flagged with flag.
func newFlagError(flag error, msg string, args ...any) error {
	return utils.NewError(1, flag, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}

// wrapFlagError returns a utils.RaisedErr{} flagged with flag.
func wrapFlagError(cause error, flag error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, flag, msg, args...)
}
