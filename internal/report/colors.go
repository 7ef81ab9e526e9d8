package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
)

// ShouldColor reports whether w is a terminal that can render colors.
func ShouldColor(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Colorizer styles summary and progress output.
type Colorizer struct {
	heading   func(string) string
	units     func(string) string
	success   func(string) string
	failure   func(string) string
	skipped   func(string) string
	errored   func(string) string
	fast      func(string) string
	seconds   func(string) string
	minutes   func(string) string
	padding   func(string) string
	highlight func(string) string
}

// NewColorizer creates a Colorizer. When shouldColor is false every style is the identity.
func NewColorizer(shouldColor bool) *Colorizer {
	if !shouldColor {
		plain := func(s string) string { return s }

		return &Colorizer{
			heading:   plain,
			units:     plain,
			success:   plain,
			failure:   plain,
			skipped:   plain,
			errored:   plain,
			fast:      plain,
			seconds:   plain,
			minutes:   plain,
			padding:   plain,
			highlight: plain,
		}
	}

	render := func(style lipgloss.Style) func(string) string {
		return func(s string) string { return style.Render(s) }
	}

	style := func(color string) func(string) string {
		return render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)))
	}

	return &Colorizer{
		heading:   style("3"),
		units:     style("15"),
		success:   style("2"),
		failure:   style("1"),
		skipped:   style("4"),
		errored:   style("5"),
		fast:      style("6"),
		seconds:   style("2"),
		minutes:   style("3"),
		padding:   render(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))),
		highlight: style("15"),
	}
}

func (c *Colorizer) status(status runnerpool.Status) func(string) string {
	switch status {
	case runnerpool.StatusPassed:
		return c.success
	case runnerpool.StatusFailed:
		return c.failure
	case runnerpool.StatusSkipped:
		return c.skipped
	case runnerpool.StatusError:
		return c.errored
	}

	return c.units
}

// colorDuration renders duration in the largest whole unit that fits.
func (c *Colorizer) colorDuration(duration time.Duration) string {
	if duration < 0 {
		return c.units("N/A")
	}

	if duration < time.Millisecond {
		return c.fast(fmt.Sprintf("%dµs", duration.Microseconds()))
	}

	if duration < time.Second {
		return c.fast(fmt.Sprintf("%dms", duration.Milliseconds()))
	}

	if duration < time.Minute {
		return c.seconds(fmt.Sprintf("%ds", int(duration.Seconds())))
	}

	return c.minutes(fmt.Sprintf("%dm", int(duration.Minutes())))
}
