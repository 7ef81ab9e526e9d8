package release

import (
	"context"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// Prepare writes the planned versions into the workspace: the version of every bumped package and
// every internal dependency on one, followed by one lockfile refresh per touched ecosystem.
//
// Manifest rewrites run one at a time since some ecosystems share a version across manifests.
func (o *Orchestrator) Prepare(ctx context.Context, releaseManifest *manifest.ReleaseManifest, dryRun bool) ([]*runnerpool.Result, error) {
	unlock, err := o.lock(dryRun)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pkgs, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}

	bumped := make(map[string]versioning.PackageVersion)

	for _, pv := range releaseManifest.Bumped() {
		if pkgs.Find(pv.Name) == nil {
			return nil, errors.New(UnknownPackageError{Name: pv.Name})
		}

		bumped[pv.Name] = pv
	}

	var (
		rewrites []*runnerpool.Unit
		touched  = make(map[component.Ecosystem][]string)
	)

	for _, pkg := range pkgs {
		pv, isBumped := bumped[pkg.Name]

		var deps []string

		for _, dep := range pkg.InternalDeps {
			if _, ok := bumped[dep]; ok {
				deps = append(deps, dep)
			}
		}

		if !isBumped && len(deps) == 0 {
			continue
		}

		set, err := o.table.Get(pkg.Ecosystem)
		if err != nil {
			return nil, err
		}

		rewrites = append(rewrites, &runnerpool.Unit{
			Name: pkg.Name,
			Run: func(ctx context.Context) runnerpool.Outcome {
				return o.rewrite(ctx, set.Workspace, pkg, pv, isBumped, deps, bumped, dryRun)
			},
		})

		touched[pkg.Ecosystem] = append(touched[pkg.Ecosystem], pkg.Name)
	}

	var locks []*runnerpool.Unit

	for _, eco := range o.table.Ecosystems() {
		names, ok := touched[eco]
		if !ok {
			continue
		}

		set := o.table[eco]

		locks = append(locks, &runnerpool.Unit{
			Name: "lock:" + string(eco),
			Deps: names,
			Run: func(ctx context.Context) runnerpool.Outcome {
				return runnerpool.OutcomeFromResult(set.PackageManager.Lock(ctx, dryRun))
			},
		})
	}

	runner := o.newRunner("prepare", len(rewrites)+len(locks), 1)

	return runner.RunWaves(ctx, [][]*runnerpool.Unit{rewrites, locks}), nil
}

func (o *Orchestrator) rewrite(
	ctx context.Context,
	ws backend.Workspace,
	pkg *component.Package,
	pv versioning.PackageVersion,
	isBumped bool,
	deps []string,
	bumped map[string]versioning.PackageVersion,
	dryRun bool,
) runnerpool.Outcome {
	l := log.LoggerFromContext(ctx)

	var (
		message string
		results []*shell.Result
	)

	if isBumped {
		var failed *runnerpool.Outcome

		results, failed = o.runHooks(ctx, hooks.BeforePrepare, pkg, hooks.Vars{Name: pkg.Name, Version: pv.NewVersion, Tag: pv.Tag}, dryRun)
		if failed != nil {
			return *failed
		}

		old, err := ws.RewriteVersion(ctx, pkg.ManifestPath, pv.NewVersion, dryRun)
		if err != nil {
			return runnerpool.Errored(err, results...)
		}

		l.Infof("%s: %s -> %s", pkg.ManifestPath, old, pv.NewVersion)

		message = pv.NewVersion
	}

	for _, dep := range deps {
		if err := ws.RewriteDependencyVersion(ctx, pkg.ManifestPath, dep, bumped[dep].NewVersion, dryRun); err != nil {
			return runnerpool.Errored(err, results...)
		}
	}

	if len(deps) > 0 {
		if message != "" {
			message += ", "
		}

		message += "dependencies: " + strings.Join(deps, ", ")
	}

	return runnerpool.Passed(message, results...)
}
