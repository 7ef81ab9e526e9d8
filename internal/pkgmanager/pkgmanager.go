// Package pkgmanager drives the ecosystem toolchains: uv, go, cargo, pnpm, dart, maven and gradle.
//
// Every operation is one command run through the shell runner, so dry runs are honored in one
// place. Operations an ecosystem has no equivalent for return a no-op result explaining why.
package pkgmanager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/util"
)

// DistDir is where builds place their artifacts, relative to the package directory.
const DistDir = "dist"

type base struct {
	runner *shell.Runner
	tool   string
	root   string
}

func newBase(runner *shell.Runner, tool, root string) base {
	return base{runner: runner, tool: tool, root: root}
}

// Name returns the tool name.
func (b *base) Name() string {
	return b.tool
}

func (b *base) dir(pkg *component.Package) string {
	if pkg == nil {
		return b.root
	}

	return util.JoinPath(b.root, pkg.Path)
}

func (b *base) command(dir string, dryRun bool, args ...string) shell.Command {
	return shell.Command{Name: b.tool, Args: args, Dir: dir, DryRun: dryRun}
}

func (b *base) run(ctx context.Context, cmd shell.Command) (*shell.Result, error) {
	return b.runner.Run(ctx, cmd)
}

// noop reports an operation the ecosystem has nothing to do for. A dry run still yields a dry run
// result, carrying the same explanation.
func (b *base) noop(dryRun bool, message string, args ...string) (*shell.Result, error) {
	argv := append([]string{b.tool}, args...)

	if dryRun {
		res := shell.DryRunResult(argv...)
		res.Message = message

		return res, nil
	}

	return shell.NoOpResult(message, argv...), nil
}

// withScratchDir runs fn with a temporary directory that is removed afterwards. Dry runs get a
// placeholder path and create nothing.
func withScratchDir(dryRun bool, fn func(dir string) (*shell.Result, error)) (*shell.Result, error) {
	if dryRun {
		return fn(filepath.Join(os.TempDir(), "releasekit-smoke"))
	}

	dir, err := os.MkdirTemp("", "releasekit-smoke-*")
	if err != nil {
		return nil, errors.New(err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	return fn(dir)
}
