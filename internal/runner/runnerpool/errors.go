package runnerpool

import (
	"fmt"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/shell"
)

// UnitEarlyExitError describes a unit that did not run because of a failure elsewhere.
type UnitEarlyExitError struct {
	UnitName         string
	FailedDependency string
}

func (err UnitEarlyExitError) Error() string {
	if err.FailedDependency != "" {
		return fmt.Sprintf("dependency %s did not pass", err.FailedDependency)
	}

	return "skipped after an earlier failure"
}

// UnitPanicError is returned when a unit panics while running.
type UnitPanicError struct {
	Cause    error
	UnitName string
}

func (err UnitPanicError) Error() string {
	return fmt.Sprintf("unit %s panicked: %v", err.UnitName, err.Cause)
}

func (err UnitPanicError) Unwrap() error {
	return err.Cause
}

// OutcomeFromResult maps the result of a backend call onto a unit outcome.
// A tooling error yields Error with its hint; a non-OK result yields Failed; anything else Passed.
func OutcomeFromResult(res *shell.Result, err error) Outcome {
	var results []*shell.Result
	if res != nil {
		results = append(results, res)
	}

	if err != nil {
		return Errored(err, results...)
	}

	if !res.OK() {
		return Failed(failureMessage(res), results...)
	}

	return Passed(res.Message, results...)
}

func failureMessage(res *shell.Result) string {
	if res == nil {
		return "no result"
	}

	msg := fmt.Sprintf("%q exited with code %d", res.String(), res.ReturnCode)

	if stderr := lastLine(res.Stderr); stderr != "" {
		msg += ": " + stderr
	} else if res.Message != "" {
		msg += ": " + res.Message
	}

	return msg
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
