package pkgmanager

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/util"
)

const (
	gradleWrapper       = "gradlew"
	gradleVersionNoOp   = "the project version is rewritten in gradle.properties"
	gradleResolveNoOp   = "Gradle publications are verified through the Maven registry"
	gradleSmokeTestNoOp = "Gradle publications are smoke tested through the Maven registry"
)

var _ backend.PackageManager = (*Gradle)(nil)

// Gradle drives Kotlin and Java Gradle builds, preferring the wrapper checked into the root.
type Gradle struct {
	base
}

func NewGradle(runner *shell.Runner, root string) *Gradle {
	tool := "gradle"
	if util.IsFile(filepath.Join(root, gradleWrapper)) {
		tool = filepath.Join(root, gradleWrapper)
	}

	return &Gradle{base: newBase(runner, tool, root)}
}

// projectPath turns a package directory into a Gradle project path, "a/b" into ":a:b".
func projectPath(pkg *component.Package) string {
	path := strings.Trim(pkg.Path, "/")
	if path == "" || path == "." {
		return ""
	}

	return ":" + strings.ReplaceAll(path, "/", ":")
}

func (gradle *Gradle) task(pkg *component.Package, name string) string {
	return projectPath(pkg) + ":" + name
}

func (gradle *Gradle) Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	return gradle.run(ctx, gradle.command(gradle.root, dryRun, "--console=plain", gradle.task(pkg, "assemble")))
}

func (gradle *Gradle) Publish(ctx context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	cmd := gradle.command(gradle.root, opts.DryRun, "--console=plain", gradle.task(pkg, "publish"))
	if opts.RegistryURL != "" {
		cmd.Env = map[string]string{"ORG_GRADLE_PROJECT_releasekitRepositoryUrl": opts.RegistryURL}
	}

	return gradle.run(ctx, cmd)
}

func (gradle *Gradle) Lock(ctx context.Context, dryRun bool) (*shell.Result, error) {
	return gradle.run(ctx, gradle.command(gradle.root, dryRun, "--console=plain", "dependencies", "--write-locks"))
}

func (gradle *Gradle) VersionBump(_ context.Context, _ *component.Package, newVersion string, dryRun bool) (*shell.Result, error) {
	return gradle.noop(dryRun, gradleVersionNoOp, "version", newVersion)
}

func (gradle *Gradle) ResolveCheck(_ context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return gradle.noop(dryRun, gradleResolveNoOp, "resolve", pkg.Name+":"+version)
}

func (gradle *Gradle) SmokeTest(_ context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error) {
	return gradle.noop(dryRun, gradleSmokeTestNoOp, "smoke-test", pkg.Name+":"+version)
}
