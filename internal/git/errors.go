package git

import (
	"errors"
	"fmt"
)

var (
	ErrCommandSpawn      = errors.New("failed to run git")
	ErrCommandFailed     = errors.New("git command failed")
	ErrNoWorkDir         = errors.New("no working directory set")
	ErrNotRepository     = errors.New("not a git repository")
	ErrNoCommits         = errors.New("repository has no commits")
	ErrMalformedLogEntry = errors.New("malformed git log entry")
)

// WrappedError provides additional context for git errors.
type WrappedError struct {
	Err     error
	Op      string
	Context string
}

func (e *WrappedError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Context, e.Err)
}

func (e *WrappedError) Unwrap() error {
	return e.Err
}

// Hint implements the hinter interface.
func (e *WrappedError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrNotRepository):
		return "run releasekit from inside a git checkout or pass --working-dir"
	case errors.Is(e.Err, ErrNoCommits):
		return "commit the workspace before releasing"
	case errors.Is(e.Err, ErrCommandSpawn):
		return "install git and make sure it is available on PATH"
	}

	return ""
}
