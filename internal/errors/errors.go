// Package errors contains helper functions for wrapping errors with stack traces, attaching remediation hints,
// and panic recovery.
package errors

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// New creates a new error wrapped in an Error type that contains the stack trace.
// `val` can be an error, a string or any value printable with `%v`. If `val` is already
// an error with a stack trace, it is returned as is. If `val` is nil, nil is returned.
func New(val any) error {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case error:
		if ContainsStackTrace(v) {
			return v
		}

		return goerrors.Wrap(v, 1)
	case string:
		return goerrors.Wrap(errors.New(v), 1)
	}

	return goerrors.Wrap(fmt.Errorf("%v", val), 1) //nolint:err113
}

// Errorf creates a new error with the given format and wraps it in an Error type that contains the stack trace.
// Wrapping with `%w` is preserved.
func Errorf(format string, args ...any) error {
	return goerrors.Wrap(fmt.Errorf(format, args...), 1) //nolint:err113
}

// WithStackTraceAndPrefix wraps the given error in an Error type that contains the stack trace and has the given
// message prepended as part of the error message. If the given error is nil, return nil.
func WithStackTraceAndPrefix(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}

	return goerrors.WrapPrefix(err, fmt.Sprintf(message, args...), 1)
}

// ErrorWithExitCode is a custom error that is used to specify the app exit code.
type ErrorWithExitCode struct {
	Err      error
	ExitCode int
}

func (err ErrorWithExitCode) Error() string {
	return err.Err.Error()
}

func (err ErrorWithExitCode) Unwrap() error {
	return err.Err
}
