package shell

import (
	"fmt"
	"strings"
)

// ToolingError is returned when a command could not be started at all, e.g. the executable
// is not on PATH. It is never returned for a command that ran and exited non-zero.
type ToolingError struct {
	Err     error
	Command []string
}

func (err *ToolingError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", strings.Join(err.Command, " "), err.Err)
}

func (err *ToolingError) Unwrap() error {
	return err.Err
}

// Hint implements the hinter interface used by the error reporting.
func (err *ToolingError) Hint() string {
	if len(err.Command) == 0 {
		return "check the tool installation"
	}

	return fmt.Sprintf("install %s and make sure it is available on PATH", err.Command[0])
}
