package util

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/gruntwork-io/releasekit/internal/errors"
)

const DefaultLockRetryDelay = 100 * time.Millisecond

type Lockfile struct {
	*flock.Flock
}

func NewLockfile(filename string) *Lockfile {
	return &Lockfile{
		flock.New(filename),
	}
}

// TryLock takes the lock without waiting. It returns a LockHeldError if another process holds it.
func (lockfile *Lockfile) TryLock() error {
	locked, err := lockfile.Flock.TryLock()
	if err != nil {
		return errors.New(err)
	}

	if !locked {
		return errors.New(LockHeldError{Path: lockfile.Path()})
	}

	return nil
}

// Lock waits for the lock until ctx is done, checking every retryDelay.
func (lockfile *Lockfile) Lock(ctx context.Context, retryDelay time.Duration) error {
	if retryDelay <= 0 {
		retryDelay = DefaultLockRetryDelay
	}

	locked, err := lockfile.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.IsContextCanceled(err) || errors.Is(err, context.DeadlineExceeded) {
			return errors.New(LockHeldError{Path: lockfile.Path()})
		}

		return errors.New(err)
	}

	if !locked {
		return errors.New(LockHeldError{Path: lockfile.Path()})
	}

	return nil
}

// Unlock releases the lock if it is held.
func (lockfile *Lockfile) Unlock() error {
	if !lockfile.Locked() {
		return nil
	}

	return errors.New(lockfile.Flock.Unlock())
}

// LockHeldError is returned when the lock file is held by another process.
type LockHeldError struct {
	Path string
}

func (err LockHeldError) Error() string {
	return fmt.Sprintf("lock file %s is held by another process", err.Path)
}

// Hint implements the hinter interface.
func (err LockHeldError) Hint() string {
	return fmt.Sprintf("wait for the other releasekit run to finish, or remove %s if you are sure no other run is active", err.Path)
}
