package errors

import "errors"

// As lets callers match typed errors, such as ErrorWithExitCode, without importing the stdlib package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is matches sentinel errors anywhere in the wrap chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join combines errs so that Is and As see every one of them.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
