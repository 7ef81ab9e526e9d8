package pkgmanager

import (
	"context"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

var _ backend.PackageManager = (*UV)(nil)

// UV drives Python packages with uv.
type UV struct {
	base
}

func NewUV(runner *shell.Runner, root string) *UV {
	return &UV{base: newBase(runner, "uv", root)}
}

func (uv *UV) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return uv.run(ctx, uv.command(uv.dir(pkg), dryRun, "build", "--out-dir", DistDir))
}

func (uv *UV) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	args := []string{"publish"}
	if opts.RegistryURL != "" {
		args = append(args, "--publish-url", opts.RegistryURL)
	}

	args = append(args, DistDir+"/*")

	return uv.run(ctx, uv.command(uv.dir(pkg), opts.DryRun, args...))
}

func (uv *UV) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	return uv.run(ctx, uv.command(uv.root, dryRun, "lock"))
}

func (uv *UV) VersionBump(ctx context.Context, pkg *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return uv.run(ctx, uv.command(uv.dir(pkg), dryRun, "version", newVersion, "--frozen"))
}

func (uv *UV) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return uv.run(ctx, uv.command(uv.root, dryRun,
		"pip", "install", "--dry-run", "--no-deps", "--refresh-package", pkg.Name, "--target", DistDir+"/.resolve", pkg.Name+"=="+version))
}

func (uv *UV) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	module := strings.ReplaceAll(pkg.Name, "-", "_")

	return uv.run(ctx, uv.command(uv.root, dryRun,
		"run", "--no-project", "--isolated", "--with", pkg.Name+"=="+version, "--", "python", "-c", "import "+module))
}
