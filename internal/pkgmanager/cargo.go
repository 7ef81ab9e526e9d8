package pkgmanager

import (
	"context"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

const cargoVersionNoOp = "the crate version is rewritten in Cargo.toml; the lock step refreshes Cargo.lock"

var _ backend.PackageManager = (*Cargo)(nil)

// Cargo drives Rust crates.
type Cargo struct {
	base
}

func NewCargo(runner *shell.Runner, root string) *Cargo {
	return &Cargo{base: newBase(runner, "cargo", root)}
}

func (cargo *Cargo) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return cargo.run(ctx, cargo.command(cargo.root, dryRun, "package", "--package", pkg.Name, "--allow-dirty"))
}

func (cargo *Cargo) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	args := []string{"publish", "--package", pkg.Name, "--allow-dirty"}
	if opts.RegistryURL != "" {
		args = append(args, "--index", opts.RegistryURL)
	}

	return cargo.run(ctx, cargo.command(cargo.root, opts.DryRun, args...))
}

func (cargo *Cargo) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	return cargo.run(ctx, cargo.command(cargo.root, dryRun, "update", "--workspace"))
}

func (cargo *Cargo) VersionBump(_ context.Context, _ *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return cargo.noop(dryRun, cargoVersionNoOp, "version", newVersion)
}

func (cargo *Cargo) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return cargo.run(ctx, cargo.command(cargo.root, dryRun, "info", pkg.Name+"@"+version))
}

func (cargo *Cargo) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return withScratchDir(dryRun, func(dir string) (*shell.Result, error) {
		return cargo.run(ctx, cargo.command(dir, dryRun, "install", pkg.Name, "--version", version, "--root", dir))
	})
}
