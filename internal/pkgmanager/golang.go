package pkgmanager

import (
	"context"
	"path/filepath"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/util"
)

const (
	goPublishNoOp = "Go modules are published by pushing their version tag; the module proxy fetches them on demand"
	goVersionNoOp = "Go module versions live in VCS tags; there is no manifest version to bump"
)

var _ backend.PackageManager = (*Go)(nil)

// Go drives Go modules.
type Go struct {
	base
}

func NewGo(runner *shell.Runner, root string) *Go {
	return &Go{base: newBase(runner, "go", root)}
}

func (g *Go) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return g.run(ctx, g.command(g.dir(pkg), dryRun, "build", "./..."))
}

func (g *Go) Publish(_ context.Context, _ *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	return g.noop(opts.DryRun, goPublishNoOp, "publish")
}

// Lock syncs the workspace file when there is one, otherwise tidies the root module.
func (g *Go) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	if util.FileExists(filepath.Join(g.root, "go.work")) {
		return g.run(ctx, g.command(g.root, dryRun, "work", "sync"))
	}

	return g.run(ctx, g.command(g.root, dryRun, "mod", "tidy"))
}

func (g *Go) VersionBump(_ context.Context, _ *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return g.noop(dryRun, goVersionNoOp, "version", newVersion)
}

func (g *Go) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	cmd := g.command(g.root, dryRun, "list", "-m", "-json", pkg.Name+"@v"+version)
	cmd.Env = map[string]string{"GOFLAGS": "-mod=mod"}

	return g.run(ctx, cmd)
}

func (g *Go) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return withScratchDir(dryRun, func(dir string) (*shell.Result, error) {
		cmd := g.command(dir, dryRun, "mod", "download", "-json", pkg.Name+"@v"+version)
		cmd.Env = map[string]string{"GOFLAGS": "-mod=mod", "GOWORK": "off"}

		return g.run(ctx, cmd)
	})
}
