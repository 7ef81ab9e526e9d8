package pkgmanager

import (
	"context"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

const dartVersionNoOp = "the package version is rewritten in pubspec.yaml"

var _ backend.PackageManager = (*Dart)(nil)

// Dart drives Dart and Flutter packages with `dart pub`.
type Dart struct {
	base
}

func NewDart(runner *shell.Runner, root string) *Dart {
	return &Dart{base: newBase(runner, "dart", root)}
}

// Build validates the package the way pub.dev would, without uploading.
func (dart *Dart) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return dart.run(ctx, dart.command(dart.dir(pkg), dryRun, "pub", "publish", "--dry-run"))
}

func (dart *Dart) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	cmd := dart.command(dart.dir(pkg), opts.DryRun, "pub", "publish", "--force")
	if opts.RegistryURL != "" {
		cmd.Env = map[string]string{"PUB_HOSTED_URL": opts.RegistryURL}
	}

	return dart.run(ctx, cmd)
}

func (dart *Dart) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	return dart.run(ctx, dart.command(dart.root, dryRun, "pub", "get"))
}

func (dart *Dart) VersionBump(_ context.Context, _ *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return dart.noop(dryRun, dartVersionNoOp, "version", newVersion)
}

func (dart *Dart) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return withScratchDir(dryRun, func(dir string) (*shell.Result, error) {
		return dart.run(ctx, dart.command(dir, dryRun, "pub", "cache", "add", pkg.Name, "--version", version))
	})
}

func (dart *Dart) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return dart.run(ctx, dart.command(dart.root, dryRun, "pub", "global", "activate", pkg.Name, version))
}
