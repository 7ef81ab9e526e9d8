package registry

import (
	"context"
	"time"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	MinPollInterval = 250 * time.Millisecond
	MaxPollInterval = 30 * time.Second
	MinPollTimeout  = time.Second
	MaxPollTimeout  = 30 * time.Minute

	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// ClampPoll fills defaults and clamps the interval to [250ms, 30s] and the timeout to [1s, 30m].
func ClampPoll(opts backend.PollOptions) backend.PollOptions {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPollTimeout
	}

	opts.Interval = min(max(opts.Interval, MinPollInterval), MaxPollInterval)
	opts.Timeout = min(max(opts.Timeout, MinPollTimeout), MaxPollTimeout)

	return opts
}

// Poll calls check until it reports true or the clamped timeout elapses. A timeout returns false
// without error; cancellation of ctx returns its error. Errors from check are logged and retried.
func Poll(ctx context.Context, l log.Logger, opts backend.PollOptions, check func(ctx context.Context) (bool, error)) (bool, error) {
	opts = ClampPoll(opts)

	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		ok, err := check(pollCtx)
		if err == nil && ok {
			return true, nil
		}

		if err != nil && pollCtx.Err() == nil {
			l.Debugf("Availability check failed, will retry: %v", err)
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return false, errors.New(ctx.Err())
			}

			return false, nil
		case <-ticker.C:
		}
	}
}
