package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
)

var statusMarks = map[runnerpool.Status]string{
	runnerpool.StatusPassed:  "✓",
	runnerpool.StatusFailed:  "✗",
	runnerpool.StatusSkipped: "-",
	runnerpool.StatusError:   "!",
}

// Progress is a runner observer that prints one line for every unit that reaches a terminal state.
type Progress struct {
	w         io.Writer
	colorizer *Colorizer
	// phase is printed in front of every line, e.g. "publish".
	phase string
	done  int
	total int
	mu    sync.Mutex
}

// NewProgress returns a Progress writing to w. Colors are used only if w is a terminal.
func NewProgress(w io.Writer, phase string, total int) *Progress {
	return &Progress{
		w:         w,
		colorizer: NewColorizer(ShouldColor(w)),
		phase:     phase,
		total:     total,
	}
}

// Observe implements runnerpool.Observer.
func (progress *Progress) Observe(event runnerpool.Event) {
	if event.Result == nil || !event.Status.IsTerminal() {
		return
	}

	progress.mu.Lock()
	defer progress.mu.Unlock()

	progress.done++

	style := progress.colorizer.status(event.Status)
	line := fmt.Sprintf("[%s %d/%d] %s %s %s",
		progress.phase,
		progress.done,
		progress.total,
		style(statusMarks[event.Status]),
		progress.colorizer.highlight(event.Name),
		style(event.Status.String()),
	)

	if event.Status != runnerpool.StatusSkipped {
		line += " " + progress.colorizer.colorDuration(event.Result.Duration)
	}

	if msg := event.Result.Outcome.Message; msg != "" {
		line += ": " + msg
	}

	fmt.Fprintln(progress.w, line) //nolint:errcheck
}
