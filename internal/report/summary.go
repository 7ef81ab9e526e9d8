// Package report renders the progress and the final summary of a release run.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
)

const (
	// ExitOK is returned when every unit passed or was skipped.
	ExitOK = 0
	// ExitFailed is returned when at least one unit failed.
	ExitFailed = 1
	// ExitError is returned when at least one unit hit a tooling error. It wins over ExitFailed.
	ExitError = 2
)

const (
	prefix              = "   "
	summaryHeader       = "❯❯ Release Summary"
	passedLabel         = "Passed"
	failedLabel         = "Failed"
	skippedLabel        = "Skipped"
	errorLabel          = "Errors"
	separatorLineLength = 28
	labelWidth          = 20
	padder              = "."
)

// Summary counts unit results per status.
type Summary struct {
	firstStart time.Time
	lastEnd    time.Time
	results    []*runnerpool.Result
	Passed     int
	Failed     int
	Skipped    int
	Errors     int
}

// Summarize builds a Summary from runner results.
func Summarize(results []*runnerpool.Result) *Summary {
	summary := &Summary{results: results}

	for _, res := range results {
		summary.Update(res)
	}

	return summary
}

// Update accounts for one more result.
func (s *Summary) Update(res *runnerpool.Result) {
	switch res.Status() {
	case runnerpool.StatusPassed:
		s.Passed++
	case runnerpool.StatusFailed:
		s.Failed++
	case runnerpool.StatusSkipped:
		s.Skipped++
	case runnerpool.StatusError:
		s.Errors++
	}

	if !res.Started.IsZero() && (s.firstStart.IsZero() || res.Started.Before(s.firstStart)) {
		s.firstStart = res.Started
	}

	if end := res.Started.Add(res.Duration); end.After(s.lastEnd) {
		s.lastEnd = end
	}
}

// TotalUnits returns the number of results in the summary.
func (s *Summary) TotalUnits() int {
	return s.Passed + s.Failed + s.Skipped + s.Errors
}

// TotalDuration is the wall-clock time from the first start to the last finish.
func (s *Summary) TotalDuration() time.Duration {
	if s.firstStart.IsZero() || s.lastEnd.Before(s.firstStart) {
		return 0
	}

	return s.lastEnd.Sub(s.firstStart)
}

// ExitCode maps the summary onto the process exit code.
func (s *Summary) ExitCode() int {
	switch {
	case s.Errors > 0:
		return ExitError
	case s.Failed > 0:
		return ExitFailed
	}

	return ExitOK
}

// Write writes the summary block. Nothing is written for an empty summary.
func (s *Summary) Write(w io.Writer, colorizer *Colorizer) error {
	if s.TotalUnits() == 0 {
		return nil
	}

	header := fmt.Sprintf("%s  %s  %s",
		colorizer.heading(summaryHeader),
		colorizer.units(fmt.Sprintf("%d packages", s.TotalUnits())),
		colorizer.colorDuration(s.TotalDuration()),
	)

	if _, err := fmt.Fprintf(w, "\n%s\n%s%s\n", header, prefix, strings.Repeat("─", separatorLineLength)); err != nil {
		return err
	}

	entries := []struct {
		style func(string) string
		label string
		count int
	}{
		{label: passedLabel, count: s.Passed, style: colorizer.success},
		{label: failedLabel, count: s.Failed, style: colorizer.failure},
		{label: skippedLabel, count: s.Skipped, style: colorizer.skipped},
		{label: errorLabel, count: s.Errors, style: colorizer.errored},
	}

	for _, entry := range entries {
		if entry.count == 0 {
			continue
		}

		padding := colorizer.padding(strings.Repeat(padder, max(labelWidth-len(entry.label), 1)))

		if _, err := fmt.Fprintf(w, "%s%s%s%s\n", prefix, entry.style(entry.label), padding, strconv.Itoa(entry.count)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)

	return err
}
