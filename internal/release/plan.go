package release

import (
	"context"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/groups"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/internal/versioning"
)

// ReasonSkippedByConfig is recorded for packages with `skip = true` in releasekit.toml.
const ReasonSkippedByConfig = "skipped by configuration"

// PlanOptions narrow or override the version computation of one plan.
type PlanOptions struct {
	// Now stamps snapshot versions; it defaults to the current time.
	Now time.Time
	// Group limits the plan to the packages of a configured group.
	Group string
	// Prerelease overrides the configured prerelease label.
	Prerelease string
	// SnapshotID is the identifier of snapshot versions; it defaults to the short HEAD SHA.
	SnapshotID string
	// Force is a minimum bump applied to every publishable package.
	Force versioning.Bump
	// Snapshot replaces every new version with a snapshot version and drops the tags.
	Snapshot bool
}

// Plan is the outcome of the plan phase.
type Plan struct {
	Manifest   *manifest.ReleaseManifest
	Graph      *graph.Graph
	Validation *graph.Validation
	// Packages are the packages the plan covers, after group filtering.
	Packages component.Packages
}

// Plan discovers the workspace, validates its dependency graph and computes the version of every
// selected package. Cycles, self dependencies and duplicate names are fatal.
func (o *Orchestrator) Plan(ctx context.Context, opts PlanOptions) (*Plan, error) {
	var plan *Plan

	err := telemetry.Collect(ctx, "release_plan", map[string]any{"group": opts.Group}, func(ctx context.Context) error {
		var err error

		plan, err = o.plan(ctx, opts)

		return err
	})

	return plan, err
}

func (o *Orchestrator) plan(ctx context.Context, opts PlanOptions) (*Plan, error) {
	pkgs, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}

	g := graph.Build(pkgs)

	validation, err := g.Validate()
	if err != nil {
		return nil, err
	}

	selected, err := groups.Filter(pkgs, o.cfg.Groups, opts.Group)
	if err != nil {
		return nil, err
	}

	policy := o.cfg.VersionPolicy()
	if !opts.Force.IsNone() {
		policy.Force = opts.Force
	}

	if opts.Prerelease != "" {
		policy.Prerelease = opts.Prerelease
	}

	versions, err := versioning.ComputeVersions(ctx, o.logger, selected, o.vcs, policy)
	if err != nil {
		return nil, err
	}

	for i := range versions {
		if o.cfg.IsSkipped(versions[i].Name) {
			versions[i] = skippedByConfig(versions[i])
		}
	}

	sha, err := o.vcs.CurrentSHA(ctx)
	if err != nil {
		return nil, errors.Errorf("reading HEAD: %w", err)
	}

	umbrellaTag := ""

	if opts.Snapshot {
		versions = o.snapshot(versions, selected, sha, opts)
	} else if format := o.cfg.UmbrellaTagFormat(); format != "" {
		if version := versioning.UmbrellaVersion(versions); version != "" {
			umbrellaTag = strings.ReplaceAll(format, "{version}", version)
		}
	}

	releaseManifest := manifest.New(sha, umbrellaTag, versions)
	releaseManifest.RunID = o.runID

	o.logger.Infof("Planned %d of %d packages for release", len(releaseManifest.Bumped()), len(versions))

	return &Plan{
		Manifest:   releaseManifest,
		Graph:      g.Subgraph(selected.Names()),
		Validation: validation,
		Packages:   selected,
	}, nil
}

// snapshot rewrites every bumped version with the snapshot version of its ecosystem scheme.
func (o *Orchestrator) snapshot(versions []versioning.PackageVersion, pkgs component.Packages, sha string, opts PlanOptions) []versioning.PackageVersion {
	identifier := opts.SnapshotID
	if identifier == "" {
		identifier = short(sha)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := make([]versioning.PackageVersion, 0, len(versions))

	for _, pv := range versions {
		if pkg := pkgs.Find(pv.Name); pkg != nil {
			version := versioning.SnapshotVersion(versioning.SchemeFor(pkg.Ecosystem), identifier, now)
			pv = versioning.ApplySnapshotVersions([]versioning.PackageVersion{pv}, version)[0]
		}

		result = append(result, pv)
	}

	return result
}

func skippedByConfig(pv versioning.PackageVersion) versioning.PackageVersion {
	pv.NewVersion = pv.OldVersion
	pv.Bump = versioning.BumpNone
	pv.Skipped = true
	pv.Reason = ReasonSkippedByConfig
	pv.Tag = ""

	return pv
}
