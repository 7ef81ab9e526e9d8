// Package runnerpool executes release units with bounded concurrency and tracks each unit through its
// lifecycle. Units are grouped into waves; a wave starts only after the previous one has finished.
package runnerpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/internal/worker"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	// DefaultConcurrency is used when no positive concurrency is configured.
	DefaultConcurrency = 4

	canceledReason = "run canceled"
)

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the number of units running at the same time.
func WithConcurrency(concurrency int) Option {
	return func(runner *Runner) {
		if concurrency > 0 {
			runner.concurrency = concurrency
		}
	}
}

// WithFailFast skips every pending unit once a unit has Failed or Errored.
func WithFailFast(failFast bool) Option {
	return func(runner *Runner) {
		runner.failFast = failFast
	}
}

// WithObserver registers an observer notified on every state change.
func WithObserver(observer Observer) Option {
	return func(runner *Runner) {
		if observer != nil {
			runner.observers = append(runner.observers, observer)
		}
	}
}

// Runner schedules units on a bounded worker pool.
type Runner struct {
	logger      log.Logger
	observers   []Observer
	concurrency int
	failFast    bool
}

// New returns a Runner with the given options applied.
func New(l log.Logger, opts ...Option) *Runner {
	runner := &Runner{
		logger:      l,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Concurrency returns the configured slot count.
func (runner *Runner) Concurrency() int {
	return runner.concurrency
}

// Run executes a single wave of independent units and returns their results in completion order.
func (runner *Runner) Run(ctx context.Context, units []*Unit) []*Result {
	return runner.RunWaves(ctx, [][]*Unit{units})
}

// RunWaves executes waves one after another. Within a wave units run concurrently. A unit whose dependency
// did not pass in an earlier wave is skipped without taking a slot. Results are returned in completion order.
func (runner *Runner) RunWaves(ctx context.Context, waves [][]*Unit) []*Result {
	state := &runState{statuses: xsync.NewMapOf[string, Status]()}

	var total int

	for _, wave := range waves {
		total += len(wave)

		for _, unit := range wave {
			state.statuses.Store(unit.Name, StatusPending)
			runner.notify(Event{Name: unit.Name, Status: StatusPending})
		}
	}

	results := make([]*Result, 0, total)

	err := telemetry.Collect(ctx, "runner_pool", map[string]any{
		"units":       total,
		"waves":       len(waves),
		"concurrency": runner.concurrency,
		"fail_fast":   runner.failFast,
	}, func(ctx context.Context) error {
		for i, wave := range waves {
			runner.logger.Debugf("Running wave %d/%d with %d unit(s)", i+1, len(waves), len(wave))

			results = append(results, runner.runWave(ctx, wave, state)...)
		}

		if state.tripped.Load() {
			return errors.New(UnitEarlyExitError{})
		}

		return nil
	})
	if err != nil {
		runner.logger.Debugf("Runner pool finished with failures: %v", err)
	}

	return results
}

func (runner *Runner) runWave(ctx context.Context, units []*Unit, state *runState) []*Result {
	finished := make(chan *Result, len(units))
	pool := worker.NewPool(runner.concurrency)

	for _, unit := range units {
		reason := runner.blockedReason(ctx, unit, state)
		if reason == "" && unit.Preflight != nil {
			reason = unit.Preflight()
		}

		if reason != "" {
			finished <- runner.finish(unit, Skipped(reason), time.Now(), state)

			continue
		}

		pool.Submit(ctx, func(ctx context.Context) error {
			// Fail-fast may have tripped while the unit waited for a slot.
			if reason := runner.blockedReason(ctx, unit, state); reason != "" {
				finished <- runner.finish(unit, Skipped(reason), time.Now(), state)

				return nil
			}

			started := time.Now()

			state.statuses.Store(unit.Name, StatusRunning)
			runner.notify(Event{Name: unit.Name, Status: StatusRunning})

			outcome := runner.execute(ctx, unit)
			finished <- runner.finish(unit, outcome, started, state)

			return outcome.Err
		})
	}

	if err := pool.Wait(); err != nil {
		runner.logger.Tracef("Wave errors: %v", err)
	}

	close(finished)

	results := make([]*Result, 0, len(units))
	for res := range finished {
		results = append(results, res)
	}

	// Units dropped by the pool because the context ended never reported back.
	for _, unit := range units {
		if status, _ := state.statuses.Load(unit.Name); !status.IsTerminal() {
			results = append(results, runner.finish(unit, Skipped(canceledReason), time.Now(), state))
		}
	}

	return results
}

// blockedReason returns why unit must not run, or an empty string.
func (runner *Runner) blockedReason(ctx context.Context, unit *Unit, state *runState) string {
	for _, dep := range unit.Deps {
		if status, ok := state.statuses.Load(dep); ok && status.IsTerminal() && status != StatusPassed {
			return UnitEarlyExitError{UnitName: unit.Name, FailedDependency: dep}.Error()
		}
	}

	if runner.failFast && state.tripped.Load() {
		return UnitEarlyExitError{UnitName: unit.Name}.Error()
	}

	if ctx.Err() != nil {
		return canceledReason
	}

	return ""
}

func (runner *Runner) execute(ctx context.Context, unit *Unit) (outcome Outcome) {
	l := runner.logger.WithField("unit", unit.Name)

	defer errors.Recover(func(cause error) {
		outcome = Errored(UnitPanicError{UnitName: unit.Name, Cause: cause})
	})

	_ = telemetry.Collect(ctx, "runner_unit", map[string]any{"unit": unit.Name}, func(ctx context.Context) error {
		outcome = unit.Run(log.ContextWithLogger(ctx, l))

		if outcome.Status == StatusError && outcome.Err == nil {
			return errors.New(outcome.Message)
		}

		return outcome.Err
	})

	switch outcome.Status {
	case StatusPassed, StatusFailed, StatusSkipped, StatusError:
	default:
		// A unit returning a zero Outcome is treated as passed.
		outcome.Status = StatusPassed
	}

	return outcome
}

func (runner *Runner) finish(unit *Unit, outcome Outcome, started time.Time, state *runState) *Result {
	res := &Result{
		Name:     unit.Name,
		Outcome:  outcome,
		Started:  started,
		Duration: time.Since(started),
	}

	if outcome.Status == StatusFailed || outcome.Status == StatusError {
		state.tripped.Store(true)
	}

	state.statuses.Store(unit.Name, outcome.Status)

	l := runner.logger.WithField("unit", unit.Name)

	switch outcome.Status {
	case StatusSkipped:
		l.Debugf("Skipped: %s", outcome.Message)
	case StatusFailed, StatusError:
		l.Errorf("%s: %s", outcome.Status, outcome.Message)
	default:
		l.Debugf("%s in %s", outcome.Status, res.Duration.Round(time.Millisecond))
	}

	runner.notify(Event{Name: unit.Name, Status: outcome.Status, Result: res})

	return res
}

func (runner *Runner) notify(event Event) {
	for _, observer := range runner.observers {
		observer.Observe(event)
	}
}

type runState struct {
	statuses *xsync.MapOf[string, Status]
	// tripped is set once any unit has Failed or Errored.
	tripped atomic.Bool
}
