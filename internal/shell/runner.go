// Package shell runs external commands with structured logging, timeouts and dry-run support.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// TimeoutExitCode is the return code reported when a command was killed after exceeding its timeout.
const TimeoutExitCode = 124

// waitDelay bounds how long Wait blocks on output pipes after the process was killed.
const waitDelay = 5 * time.Second

// Command describes one external process invocation.
type Command struct {
	Env     map[string]string
	Name    string
	Dir     string
	Args    []string
	Timeout time.Duration
	DryRun  bool
}

// Argv returns the full argument vector.
func (cmd Command) Argv() []string {
	return append([]string{cmd.Name}, cmd.Args...)
}

// Runner executes commands. The zero value is not usable, use NewRunner.
type Runner struct {
	logger   log.Logger
	env      map[string]string
	lookPath func(file string) (string, error)
	timeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnv adds environment variables passed to every command.
func WithEnv(env map[string]string) Option {
	return func(runner *Runner) {
		maps.Copy(runner.env, env)
	}
}

// WithTimeout sets the default timeout for commands that do not set their own.
func WithTimeout(timeout time.Duration) Option {
	return func(runner *Runner) {
		runner.timeout = timeout
	}
}

// WithLookPath replaces the executable lookup, used by tests.
func WithLookPath(fn func(file string) (string, error)) Option {
	return func(runner *Runner) {
		runner.lookPath = fn
	}
}

// NewRunner returns a Runner logging to l.
func NewRunner(l log.Logger, opts ...Option) *Runner {
	runner := &Runner{
		logger:   l,
		env:      map[string]string{},
		lookPath: exec.LookPath,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes cmd and returns its result. Dry runs never spawn a process.
//
// A non-nil error is only returned when the command could not be started; a command that
// ran and exited non-zero is reported through Result.ReturnCode.
func (runner *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	argv := cmd.Argv()
	l := runner.logger

	if cmd.DryRun {
		l.Infof("[dry-run] %s", strings.Join(argv, " "))
		return DryRunResult(argv...), nil
	}

	var result *Result

	err := telemetry.Collect(ctx, "run_"+cmd.Name, map[string]any{
		"command": cmd.Name,
		"args":    cmd.Args,
		"dir":     cmd.Dir,
	}, func(ctx context.Context) error {
		res, err := runner.run(ctx, cmd)
		result = res

		return err
	})

	return result, err
}

func (runner *Runner) run(ctx context.Context, cmd Command) (*Result, error) {
	argv := cmd.Argv()
	l := runner.logger

	path, err := runner.lookPath(cmd.Name)
	if err != nil {
		return nil, &ToolingError{Command: argv, Err: err}
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = runner.timeout
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	proc := exec.CommandContext(ctx, path, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Env = runner.environ(cmd.Env)
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	proc.WaitDelay = waitDelay

	l.Debugf("Running command: %s", strings.Join(argv, " "))

	started := time.Now()
	err = proc.Run()

	result := &Result{
		Command:  argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
		Kind:     KindExecuted,
	}

	if err == nil {
		return result, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ReturnCode = TimeoutExitCode
		result.Stderr += fmt.Sprintf("\ncommand timed out after %s", timeout)
		l.Warnf("Command %s timed out after %s", cmd.Name, timeout)

		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ReturnCode = exitErr.ExitCode()
		l.Debugf("Command %s exited with code %d", cmd.Name, result.ReturnCode)

		return result, nil
	}

	return nil, &ToolingError{Command: argv, Err: err}
}

func (runner *Runner) environ(extra map[string]string) []string {
	env := os.Environ()

	merged := maps.Clone(runner.env)
	maps.Copy(merged, extra)

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, key+"="+merged[key])
	}

	return env
}
