package pkgmanager

import (
	"context"
	"fmt"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

var _ backend.PackageManager = (*PNPM)(nil)

// PNPM drives JavaScript packages with pnpm.
type PNPM struct {
	base
}

func NewPNPM(runner *shell.Runner, root string) *PNPM {
	return &PNPM{base: newBase(runner, "pnpm", root)}
}

func (pnpm *PNPM) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return pnpm.run(ctx, pnpm.command(pnpm.root, dryRun, "--filter", pkg.Name, "run", "--if-present", "build"))
}

func (pnpm *PNPM) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	args := []string{"publish", "--no-git-checks", "--access", "public"}

	if opts.DistTag != "" {
		args = append(args, "--tag", opts.DistTag)
	}

	if opts.RegistryURL != "" {
		args = append(args, "--registry", opts.RegistryURL)
	}

	return pnpm.run(ctx, pnpm.command(pnpm.dir(pkg), opts.DryRun, args...))
}

func (pnpm *PNPM) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	return pnpm.run(ctx, pnpm.command(pnpm.root, dryRun, "install", "--lockfile-only"))
}

func (pnpm *PNPM) VersionBump(ctx context.Context, pkg *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return pnpm.run(ctx, pnpm.command(pnpm.dir(pkg), dryRun, "version", newVersion, "--no-git-tag-version", "--allow-same-version"))
}

func (pnpm *PNPM) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return pnpm.run(ctx, pnpm.command(pnpm.root, dryRun, "view", pkg.Name+"@"+version, "version"))
}

func (pnpm *PNPM) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return withScratchDir(dryRun, func(dir string) (*shell.Result, error) {
		return pnpm.run(ctx, pnpm.command(dir, dryRun,
			"dlx", "--package", pkg.Name+"@"+version, "node", "-e", fmt.Sprintf("require(%q)", pkg.Name)))
	})
}
