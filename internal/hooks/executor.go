package hooks

import (
	"context"
	"fmt"

	"github.com/mattn/go-shellwords"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// Executor runs hook commands through a shell.Runner.
type Executor struct {
	logger log.Logger
	runner *shell.Runner
}

// NewExecutor returns an Executor using runner for every command.
func NewExecutor(l log.Logger, runner *shell.Runner) *Executor {
	return &Executor{logger: l, runner: runner}
}

// Run runs the commands of event in order from dir. It stops at the first command that fails and returns
// the results collected so far. A failed command is reported through its result, not through the error;
// the error is set only when a command could not be parsed or started.
func (executor *Executor) Run(ctx context.Context, event Event, commands []string, vars Vars, dir string, dryRun bool) ([]*shell.Result, error) {
	results := make([]*shell.Result, 0, len(commands))
	l := executor.logger.WithField("hook", string(event))

	for _, template := range commands {
		line := Expand(template, vars)

		parser := shellwords.NewParser()

		argv, err := parser.Parse(line)
		if err != nil {
			return results, errors.New(InvalidCommandError{Event: event, Command: line, Err: err})
		}

		if len(argv) == 0 {
			continue
		}

		l.Debugf("Running %s", line)

		res, err := executor.runner.Run(ctx, shell.Command{
			Name:   argv[0],
			Args:   argv[1:],
			Dir:    dir,
			DryRun: dryRun,
			Env: map[string]string{
				"RELEASEKIT_HOOK":    string(event),
				"RELEASEKIT_NAME":    vars.Name,
				"RELEASEKIT_VERSION": vars.Version,
				"RELEASEKIT_TAG":     vars.Tag,
			},
		})
		if res != nil {
			results = append(results, res)
		}

		if err != nil {
			return results, err
		}

		if !res.OK() {
			l.Errorf("Hook command %q exited with code %d", line, res.ReturnCode)
			return results, nil
		}
	}

	return results, nil
}

// FirstFailure returns the first result that did not succeed, or nil.
func FirstFailure(results []*shell.Result) *shell.Result {
	for _, res := range results {
		if !res.OK() {
			return res
		}
	}

	return nil
}

// InvalidCommandError is returned for a hook command that cannot be split into arguments.
type InvalidCommandError struct {
	Err     error
	Event   Event
	Command string
}

func (err InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid %s hook %q: %v", err.Event, err.Command, err.Err)
}

func (err InvalidCommandError) Unwrap() error {
	return err.Err
}

// Hint implements the hinter interface.
func (err InvalidCommandError) Hint() string {
	return "check the quoting of the hook command in releasekit.toml"
}
