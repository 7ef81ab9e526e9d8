package shell

import (
	"strings"
	"time"
)

// ResultKind tags how a Result came to be.
type ResultKind int

const (
	// KindExecuted means an external process or request was actually performed.
	KindExecuted ResultKind = iota
	// KindDryRun means nothing was performed because the caller asked for a dry run.
	KindDryRun
	// KindNoOp means the backend had nothing to do for this operation, e.g. publishing a Go module.
	KindNoOp
)

func (kind ResultKind) String() string {
	switch kind {
	case KindDryRun:
		return "dry-run"
	case KindNoOp:
		return "no-op"
	}

	return "executed"
}

// Result is the outcome of one external operation.
type Result struct {
	// Command is the argument vector, kept for audit and logs.
	Command    []string
	Stdout     string
	Stderr     string
	Message    string
	ReturnCode int
	Duration   time.Duration
	Kind       ResultKind
}

// OK reports whether the operation succeeded.
func (res *Result) OK() bool {
	return res != nil && res.ReturnCode == 0
}

// IsDryRun reports whether the operation was skipped because of a dry run.
func (res *Result) IsDryRun() bool {
	return res != nil && res.Kind == KindDryRun
}

// IsNoOp reports whether the backend had nothing to do.
func (res *Result) IsNoOp() bool {
	return res != nil && res.Kind == KindNoOp
}

// String returns the command line of the result.
func (res *Result) String() string {
	return strings.Join(res.Command, " ")
}

// DryRunResult returns the synthetic success result every backend returns for a dry run.
func DryRunResult(argv ...string) *Result {
	return &Result{
		Command: argv,
		Kind:    KindDryRun,
	}
}

// NoOpResult returns a successful result carrying an explanation of why nothing was done.
func NoOpResult(message string, argv ...string) *Result {
	return &Result{
		Command: argv,
		Message: message,
		Kind:    KindNoOp,
	}
}
