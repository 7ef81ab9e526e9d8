// Package worker bounds how many release units run at once.
//
// Every submitted task gets its own goroutine, but only Size of them hold a slot of the pool's semaphore at the
// same time. A task still waiting for a slot when its context is done is dropped without running.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Task is one unit of work. It runs with the context it was submitted with.
type Task func(ctx context.Context) error

// Pool runs tasks with a fixed concurrency bound.
type Pool struct {
	semaphore chan struct{}
	errs      *errors.MultiError
	wg        sync.WaitGroup
	errsMu    sync.Mutex
	active    atomic.Int64
	peak      atomic.Int64
	size      int
	stopping  atomic.Bool
}

// NewPool creates a pool running at most size tasks at once. A size below one means one.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	return &Pool{
		size:      size,
		semaphore: make(chan struct{}, size),
		errs:      &errors.MultiError{},
	}
}

// Size returns the concurrency bound.
func (pool *Pool) Size() int {
	return pool.size
}

func (pool *Pool) appendError(err error) {
	if err == nil {
		return
	}

	pool.errsMu.Lock()
	pool.errs = pool.errs.Append(err)
	pool.errsMu.Unlock()
}

// Submit schedules task. It reports false when the pool is stopping and the task was not accepted.
func (pool *Pool) Submit(ctx context.Context, task Task) bool {
	if pool.stopping.Load() {
		return false
	}

	pool.wg.Add(1)

	go func() {
		defer pool.wg.Done()

		select {
		case pool.semaphore <- struct{}{}:
		case <-ctx.Done():
			pool.appendError(errors.New(ctx.Err()))
			return
		}

		defer func() { <-pool.semaphore }()

		// The slot may have been won in a race with cancellation.
		if ctx.Err() != nil {
			pool.appendError(errors.New(ctx.Err()))
			return
		}

		active := pool.active.Add(1)
		defer pool.active.Add(-1)

		for {
			peak := pool.peak.Load()
			if active <= peak || pool.peak.CompareAndSwap(peak, active) {
				break
			}
		}

		pool.appendError(task(ctx))
	}()

	return true
}

// Wait blocks until every accepted task has finished and returns their errors.
func (pool *Pool) Wait() error {
	pool.wg.Wait()

	pool.errsMu.Lock()
	defer pool.errsMu.Unlock()

	return pool.errs.ErrorOrNil()
}

// Stop makes the pool refuse new tasks. Tasks already accepted still run.
func (pool *Pool) Stop() {
	pool.stopping.Store(true)
}

// IsStopping reports whether Stop was called.
func (pool *Pool) IsStopping() bool {
	return pool.stopping.Load()
}

// Active returns the number of tasks holding a slot right now.
func (pool *Pool) Active() int {
	return int(pool.active.Load())
}

// Peak returns the highest number of tasks that held a slot at the same time.
func (pool *Pool) Peak() int {
	return int(pool.peak.Load())
}
