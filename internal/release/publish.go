package release

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/pkgmanager"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const (
	// MessageAlreadyPublished is the outcome of a package whose version is already on its registry.
	MessageAlreadyPublished = "already published"

	prereleaseDistTag = "next"
	snapshotDistTag   = "snapshot"
)

// digester is implemented by registries that can verify uploaded artifacts.
type digester interface {
	DigestAlgorithm() util.HashAlgorithm
}

// Publish builds and uploads every bumped package of the manifest. Packages are published in
// dependency waves so a package only goes out once everything it depends on is available; a
// package whose dependency did not pass is skipped. Manifest entries without a new version are
// reported as skipped with their reason.
func (o *Orchestrator) Publish(ctx context.Context, releaseManifest *manifest.ReleaseManifest, dryRun bool) ([]*runnerpool.Result, error) {
	unlock, err := o.lock(dryRun)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pkgs, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}

	bumped := releaseManifest.Bumped()

	names := make([]string, 0, len(bumped))
	for _, pv := range bumped {
		if pkgs.Find(pv.Name) == nil {
			return nil, errors.New(UnknownPackageError{Name: pv.Name})
		}

		names = append(names, pv.Name)
	}

	g := graph.Build(pkgs).Subgraph(names)

	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}

	units := make([][]*runnerpool.Unit, len(waves))
	total := 0

	for i, wave := range waves {
		for _, name := range wave {
			pv, _ := releaseManifest.Get(name)

			unit, err := o.publishUnit(pkgs, pv, g.Dependencies(name), dryRun)
			if err != nil {
				return nil, err
			}

			units[i] = append(units[i], unit)
			total++
		}
	}

	var unchanged []*runnerpool.Unit

	for _, pv := range releaseManifest.Packages {
		if pv.Bumped() {
			continue
		}

		reason := pv.Reason
		if reason == "" {
			reason = "no new version"
		}

		unchanged = append(unchanged, &runnerpool.Unit{
			Name:      pv.Name,
			Preflight: func() string { return reason },
		})
	}

	if len(unchanged) > 0 {
		if len(units) == 0 {
			units = append(units, nil)
		}

		units[0] = append(units[0], unchanged...)
		total += len(unchanged)
	}

	runner := o.newRunner("publish", total, o.cfg.Concurrency)

	return runner.RunWaves(ctx, units), nil
}

func (o *Orchestrator) publishUnit(pkgs component.Packages, pv versioning.PackageVersion, deps []string, dryRun bool) (*runnerpool.Unit, error) {
	pkg, set, err := o.resolve(pkgs, pv.Name)
	if err != nil {
		return nil, err
	}

	return &runnerpool.Unit{
		Name: pkg.Name,
		Deps: deps,
		Preflight: func() string {
			switch {
			case !pkg.IsPublishable:
				return versioning.ReasonNotPublishable
			case o.cfg.IsSkipped(pkg.Name):
				return ReasonSkippedByConfig
			}

			if key := o.missingEnv(set); key != "" {
				return "missing required environment variable " + key
			}

			return ""
		},
		Run: func(ctx context.Context) runnerpool.Outcome {
			return o.publish(ctx, set, pkg, pv, dryRun)
		},
	}, nil
}

func (o *Orchestrator) publish(ctx context.Context, set *backend.Set, pkg *component.Package, pv versioning.PackageVersion, dryRun bool) runnerpool.Outcome {
	l := log.LoggerFromContext(ctx)
	vars := hooks.Vars{Name: pkg.Name, Version: pv.NewVersion, Tag: pv.Tag}

	results, failed := o.runHooks(ctx, hooks.BeforePublish, pkg, vars, dryRun)
	if failed != nil {
		return *failed
	}

	res, err := set.PackageManager.Build(ctx, pkg, dryRun)
	if results, failed = step("build", res, err, results); failed != nil {
		return *failed
	}

	published, err := set.Registry.CheckPublished(ctx, pkg.Name, pv.NewVersion)
	if err != nil {
		return runnerpool.Errored(err, results...)
	}

	if published {
		l.Infof("%s %s is already on %s", pkg.Name, pv.NewVersion, set.Registry.Name())
		return runnerpool.Passed(MessageAlreadyPublished, results...)
	}

	res, err = set.PackageManager.Publish(ctx, pkg, backend.PublishOptions{
		DistTag:     distTag(pv),
		RegistryURL: o.cfg.RegistryURL(pkg.Ecosystem),
		DryRun:      dryRun,
	})
	if results, failed = step("publish", res, err, results); failed != nil {
		return *failed
	}

	message := "published to " + set.Registry.Name()

	switch {
	case dryRun:
		message = "dry run"
	case res.IsNoOp():
		message = res.Message
	default:
		if outcome := o.confirm(ctx, set, pkg, pv, results); outcome != nil {
			return *outcome
		}
	}

	hookResults, failed := o.runHooks(ctx, hooks.AfterPublish, pkg, vars, dryRun)
	if failed != nil {
		failed.Results = append(results, hookResults...)
		return *failed
	}

	return runnerpool.Passed(message, append(results, hookResults...)...)
}

// confirm waits for the version to appear on the registry and compares the uploaded artifacts with
// the local ones when the registry supports it.
func (o *Orchestrator) confirm(ctx context.Context, set *backend.Set, pkg *component.Package, pv versioning.PackageVersion, results []*shell.Result) *runnerpool.Outcome {
	poll := o.cfg.PollOptions()

	available, err := set.Registry.PollAvailable(ctx, pkg.Name, pv.NewVersion, poll)
	if err != nil {
		outcome := runnerpool.Errored(err, results...)
		return &outcome
	}

	if !available {
		outcome := runnerpool.Failed(fmt.Sprintf("%s did not appear on %s within %s", pv.NewVersion, set.Registry.Name(), poll.Timeout), results...)
		return &outcome
	}

	registry, ok := set.Registry.(digester)
	if !ok {
		return nil
	}

	local, err := o.artifactDigests(pkg, pv.NewVersion, registry.DigestAlgorithm())
	if err != nil {
		outcome := runnerpool.Errored(err, results...)
		return &outcome
	}

	if len(local) == 0 {
		return nil
	}

	report, err := set.Registry.VerifyChecksum(ctx, pkg.Name, pv.NewVersion, local)
	if err != nil {
		outcome := runnerpool.Errored(err, results...)
		return &outcome
	}

	if !report.OK() {
		files := append(sortedKeys(report.Mismatched), report.Missing...)
		outcome := runnerpool.Failed("checksum verification failed for "+strings.Join(files, ", "), results...)

		return &outcome
	}

	log.LoggerFromContext(ctx).Debugf("Verified %d artifacts of %s", len(report.Matched), pkg.Name)

	return nil
}

// artifactDigests returns the digests of the built artifacts of version, keyed by file name.
func (o *Orchestrator) artifactDigests(pkg *component.Package, version string, algorithm util.HashAlgorithm) (map[string]string, error) {
	dir := artifactDir(o.root, pkg)
	if dir == "" {
		return nil, nil
	}

	digests, err := util.DirDigests(dir, algorithm)
	if err != nil {
		return nil, err
	}

	maps.DeleteFunc(digests, func(file, _ string) bool {
		return !strings.Contains(file, "-"+version)
	})

	return digests, nil
}

// artifactDir is where the build of pkg leaves the files uploaded to its registry, or an empty
// string when the upload is not built locally.
func artifactDir(root string, pkg *component.Package) string {
	dir := util.JoinPath(root, pkg.Path)

	switch pkg.Ecosystem {
	case component.Python:
		return filepath.Join(dir, pkgmanager.DistDir)
	case component.Rust:
		return filepath.Join(root, "target", "package")
	case component.Java:
		return filepath.Join(dir, "target")
	case component.Kotlin:
		return filepath.Join(dir, "build", "libs")
	}

	return ""
}

// step turns the result of one command into a failed outcome carrying every result so far, or
// returns nil when the command passed.
func step(name string, res *shell.Result, err error, results []*shell.Result) ([]*shell.Result, *runnerpool.Outcome) {
	if res != nil {
		results = append(results, res)
	}

	outcome := runnerpool.OutcomeFromResult(res, err)
	if outcome.Status == runnerpool.StatusPassed {
		return results, nil
	}

	outcome.Message = name + ": " + outcome.Message
	outcome.Results = results

	return results, &outcome
}

func distTag(pv versioning.PackageVersion) string {
	switch pv.Bump {
	case versioning.BumpSnapshot:
		return snapshotDistTag
	case versioning.BumpPrerelease:
		return prereleaseDistTag
	}

	return ""
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
