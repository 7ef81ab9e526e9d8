package pkgmanager

import (
	"context"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

const mavenLockNoOp = "Maven resolves dependencies from pom.xml and has no lock file"

var _ backend.PackageManager = (*Maven)(nil)

// Maven drives Java modules. Package names are `groupId:artifactId`.
type Maven struct {
	base
}

func NewMaven(runner *shell.Runner, root string) *Maven {
	return &Maven{base: newBase(runner, "mvn", root)}
}

func (mvn *Maven) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return mvn.run(ctx, mvn.command(mvn.dir(pkg), dryRun, "--batch-mode", "package", "-DskipTests"))
}

func (mvn *Maven) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	args := []string{"--batch-mode", "deploy", "-DskipTests"}
	if opts.RegistryURL != "" {
		args = append(args, "-DaltDeploymentRepository=releasekit::"+opts.RegistryURL)
	}

	return mvn.run(ctx, mvn.command(mvn.dir(pkg), opts.DryRun, args...))
}

func (mvn *Maven) Lock(_ context.Context, dryRun bool) (*shell.Result, error) {
	return mvn.noop(dryRun, mavenLockNoOp, "lock")
}

func (mvn *Maven) VersionBump(ctx context.Context, pkg *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return mvn.run(ctx, mvn.command(mvn.dir(pkg), dryRun,
		"--batch-mode", "versions:set", "-DnewVersion="+newVersion, "-DgenerateBackupPoms=false"))
}

func (mvn *Maven) ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return mvn.run(ctx, mvn.command(mvn.root, dryRun,
		"--batch-mode", "dependency:get", "-Dartifact="+pkg.Name+":"+version, "-Dtransitive=false"))
}

func (mvn *Maven) SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return mvn.run(ctx, mvn.command(mvn.root, dryRun,
		"--batch-mode", "dependency:get", "-Dartifact="+pkg.Name+":"+version, "-Dtransitive=true"))
}
