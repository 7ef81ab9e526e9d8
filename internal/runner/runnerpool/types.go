package runnerpool

import (
	"context"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

// Status is the lifecycle state of a unit: Pending -> Running -> {Passed, Failed, Skipped, Error}.
// Skipped units go straight from Pending to Skipped.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusPassed
	StatusFailed
	StatusSkipped
	StatusError
)

func (status Status) String() string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusError:
		return "error"
	}

	return "unknown"
}

// IsTerminal reports whether no further transition can happen.
func (status Status) IsTerminal() bool {
	return status >= StatusPassed
}

// Unit is one schedulable piece of work, e.g. publishing a single package.
type Unit struct {
	// Preflight is evaluated before scheduling. A non-empty reason skips the unit without taking a slot.
	Preflight func() string
	// Run performs the work. It receives a context carrying a logger tagged with the unit name.
	Run  func(ctx context.Context) Outcome
	Name string
	// Deps names units of earlier waves that must have passed for this unit to run.
	Deps []string
}

// Outcome is what a unit reports back when it finishes.
type Outcome struct {
	Err     error
	Message string
	Hint    string
	Results []*shell.Result
	Status  Status
}

// Passed returns a successful outcome.
func Passed(message string, results ...*shell.Result) Outcome {
	return Outcome{Status: StatusPassed, Message: message, Results: results}
}

// Failed returns the outcome of a command that ran and did not succeed.
func Failed(message string, results ...*shell.Result) Outcome {
	return Outcome{Status: StatusFailed, Message: message, Results: results}
}

// Skipped returns the outcome of a unit that did not run.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Message: reason}
}

// Errored returns the outcome of a unit that could not run because of a tooling or internal error.
func Errored(err error, results ...*shell.Result) Outcome {
	outcome := Outcome{Status: StatusError, Err: err, Results: results}

	if err != nil {
		outcome.Message = err.Error()
		outcome.Hint = errors.Hint(err)
	}

	return outcome
}

// Result is the final record of one unit.
type Result struct {
	Started  time.Time
	Name     string
	Outcome  Outcome
	Duration time.Duration
}

// Status returns the terminal status of the unit.
func (res *Result) Status() Status {
	return res.Outcome.Status
}

// Event is a single state change.
type Event struct {
	// Result is set only for terminal states.
	Result *Result
	Name   string
	Status Status
}

// Observer receives every state change of every unit. Implementations must be safe for concurrent use.
type Observer interface {
	Observe(event Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(event Event)

func (fn ObserverFunc) Observe(event Event) {
	fn(event)
}
