package util

import (
	"context"
	"fmt"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// DoWithRetry runs the specified action. If it returns an error, sleep for sleepBetweenRetries and try again,
// up to a maximum of maxRetries retries. If maxRetries is exceeded, return a MaxRetriesExceeded error.
// Errors wrapped in FatalError are returned immediately.
func DoWithRetry(ctx context.Context, actionDescription string, maxRetries int, sleepBetweenRetries time.Duration, l log.Logger, action func(ctx context.Context) error) error {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		err := action(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		var fatalErr FatalError
		if ok := errors.As(err, &fatalErr); ok {
			return fatalErr.Underlying
		}

		if ctx.Err() != nil {
			return errors.New(ctx.Err())
		}

		if i == maxRetries {
			break
		}

		l.Debugf("%s returned an error: %s. Retry %d of %d. Sleeping for %s and will try again.", actionDescription, err.Error(), i+1, maxRetries, sleepBetweenRetries)

		select {
		case <-time.After(sleepBetweenRetries):
		case <-ctx.Done():
			return errors.New(ctx.Err())
		}
	}

	return errors.New(MaxRetriesExceeded{Description: actionDescription, MaxRetries: maxRetries, Err: lastErr})
}

// MaxRetriesExceeded is an error that occurs when the maximum amount of retries is exceeded.
type MaxRetriesExceeded struct {
	Err         error
	Description string
	MaxRetries  int
}

func (err MaxRetriesExceeded) Error() string {
	return fmt.Sprintf("'%s' unsuccessful after %d retries: %v", err.Description, err.MaxRetries, err.Err)
}

func (err MaxRetriesExceeded) Unwrap() error {
	return err.Err
}

// FatalError is error interface for cases that should not be retried.
type FatalError struct {
	Underlying error
}

func (err FatalError) Error() string {
	return err.Underlying.Error()
}

func (err FatalError) Unwrap() error {
	return err.Underlying
}
