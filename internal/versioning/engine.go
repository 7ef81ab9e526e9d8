package versioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"golang.org/x/sync/errgroup"
)

// ReasonNotPublishable is the reason recorded for packages that are never released.
const ReasonNotPublishable = "not publishable"

// goPlaceholderVersion is used for Go modules that have never been tagged.
const goPlaceholderVersion = "0.0.0"

// PackageVersion is the computed release decision for one package.
type PackageVersion struct {
	Name       string `json:"name"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
	Bump       Bump   `json:"bump"`
	Reason     string `json:"reason"`
	Skipped    bool   `json:"skipped"`
	Tag        string `json:"tag"`
}

// Bumped reports whether the package gets a new version.
func (pv PackageVersion) Bumped() bool {
	return !pv.Skipped && !pv.Bump.IsNone()
}

type computation struct {
	pkg    *component.Package
	scheme Scheme
	// severity is the bump before a prerelease label is applied.
	severity Bump
	version  PackageVersion
}

func (comp *computation) apply(severity Bump, reason string, policy *Policy) error {
	comp.severity = severity
	comp.version.Reason = reason

	if severity.IsNone() {
		comp.version.Bump = BumpNone
		comp.version.NewVersion = comp.version.OldVersion
		comp.version.Tag = ""
		comp.version.Skipped = true

		return nil
	}

	newVersion, err := comp.scheme.Bump(comp.version.OldVersion, severity, policy.bumpOptions())
	if err != nil {
		return errors.Errorf("computing the version of %s: %w", comp.pkg.Name, err)
	}

	return comp.stamp(newVersion, severity, policy)
}

func (comp *computation) stamp(newVersion string, severity Bump, policy *Policy) error {
	comp.severity = severity
	comp.version.Bump = severity

	if policy.Prerelease != "" || severity == BumpPrerelease {
		comp.version.Bump = BumpPrerelease
	}

	comp.version.NewVersion = newVersion
	comp.version.Tag = FormatTag(policy.TagFormat(comp.pkg.Ecosystem), comp.pkg, newVersion)
	comp.version.Skipped = false

	return nil
}

func (comp *computation) bumped() bool {
	return comp.version.Bumped()
}

// ComputeVersions computes the release decision of every package. Results are returned in the
// order of pkgs. The tags are listed once and every package's history is read concurrently.
func ComputeVersions(ctx context.Context, l log.Logger, pkgs component.Packages, vcs backend.VCS, policy Policy) ([]PackageVersion, error) {
	cohorts, err := policy.CompileCohorts()
	if err != nil {
		return nil, err
	}

	tags, err := vcs.Tags(ctx)
	if err != nil {
		return nil, errors.Errorf("listing tags: %w", err)
	}

	comps := make([]*computation, len(pkgs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(policy.concurrency())

	for i, pkg := range pkgs {
		group.Go(func() error {
			comp, err := computePackage(groupCtx, pkg, tags, vcs, &policy)
			if err != nil {
				return err
			}

			comps[i] = comp

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for {
		propagated, err := propagate(pkgs, comps, &policy)
		if err != nil {
			return nil, err
		}

		synced, err := applyCohorts(comps, cohorts, &policy)
		if err != nil {
			return nil, err
		}

		if !propagated && !synced {
			break
		}
	}

	versions := make([]PackageVersion, 0, len(comps))

	for _, comp := range comps {
		pv := comp.version
		if pv.Bumped() {
			l.Debugf("%s: %s -> %s (%s)", pv.Name, pv.OldVersion, pv.NewVersion, pv.Reason)
		} else {
			l.Debugf("%s: skipped, %s", pv.Name, pv.Reason)
		}

		versions = append(versions, pv)
	}

	return versions, nil
}

func computePackage(ctx context.Context, pkg *component.Package, tags []string, vcs backend.VCS, policy *Policy) (*computation, error) {
	comp := &computation{
		pkg:      pkg,
		scheme:   SchemeFor(pkg.Ecosystem),
		severity: BumpNone,
		version: PackageVersion{
			Name:       pkg.Name,
			OldVersion: pkg.Version,
			NewVersion: pkg.Version,
			Bump:       BumpNone,
		},
	}

	if !pkg.IsPublishable {
		comp.version.Skipped = true
		comp.version.Reason = ReasonNotPublishable

		return comp, nil
	}

	lastTag, lastVersion := LastReleaseTag(tags, policy.TagFormat(pkg.Ecosystem), pkg, comp.scheme)

	if comp.scheme.Name() == SchemeGo {
		comp.version.OldVersion = goPlaceholderVersion
		if lastVersion != "" {
			comp.version.OldVersion = lastVersion
		}

		comp.version.NewVersion = comp.version.OldVersion
	}

	commits, err := vcs.Log(ctx, backend.LogOptions{Since: lastTag, Paths: []string{pkg.Path}})
	if err != nil {
		return nil, errors.Errorf("reading the history of %s: %w", pkg.Name, err)
	}

	bump, reason := ClassifyAll(commits)

	if !policy.Force.IsNone() && bump.Less(policy.Force) {
		bump, reason = policy.Force, "forced "+policy.Force.String()
	}

	if err := comp.apply(bump, reason, policy); err != nil {
		return nil, err
	}

	return comp, nil
}

// LastReleaseTag returns the last release tag of the package and the version it carries.
// The tag of the package's declared version is preferred, otherwise the highest valid version
// among the tags matching the format wins. Both values are empty when no tag matches.
func LastReleaseTag(tags []string, format string, pkg *component.Package, scheme Scheme) (string, string) {
	prefix, suffix := splitTagFormat(format, pkg)

	var bestTag, bestVersion string

	for _, tag := range tags {
		if len(tag) <= len(prefix)+len(suffix) || !strings.HasPrefix(tag, prefix) || !strings.HasSuffix(tag, suffix) {
			continue
		}

		version := tag[len(prefix) : len(tag)-len(suffix)]
		if !scheme.Valid(version) {
			continue
		}

		if version == pkg.Version {
			return tag, version
		}

		if bestTag == "" || scheme.Compare(version, bestVersion) > 0 {
			bestTag, bestVersion = tag, version
		}
	}

	return bestTag, bestVersion
}

// propagate bumps, by patch, every package whose internal dependency is bumped, visiting packages
// in dependency order so that bumps travel down the whole chain in one pass.
func propagate(pkgs component.Packages, comps []*computation, policy *Policy) (bool, error) {
	if !policy.PropagateToDependents {
		return false, nil
	}

	order, err := graph.Build(pkgs).TopoOrder()
	if err != nil {
		return false, err
	}

	byName := make(map[string]*computation, len(comps))
	for _, comp := range comps {
		byName[comp.pkg.Name] = comp
	}

	var changed bool

	for _, name := range order {
		comp := byName[name]
		if comp == nil || !comp.pkg.IsPublishable || comp.bumped() {
			continue
		}

		for _, dep := range comp.pkg.InternalDeps {
			if depComp, ok := byName[dep]; ok && depComp.bumped() {
				if err := comp.apply(BumpPatch, fmt.Sprintf("dependency %s bumped to %s", dep, depComp.version.NewVersion), policy); err != nil {
					return false, err
				}

				changed = true

				break
			}
		}
	}

	return changed, nil
}

// applyCohorts gives every publishable member of a cohort the highest bump of the cohort applied
// to the highest current version of the cohort.
func applyCohorts(comps []*computation, cohorts []*Cohort, policy *Policy) (bool, error) {
	var changed bool

	for _, cohort := range cohorts {
		var (
			members []*computation
			trigger *computation
		)

		for _, comp := range comps {
			if comp.pkg.IsPublishable && cohort.Match(comp.pkg.Name) {
				members = append(members, comp)

				if trigger == nil || trigger.severity.Less(comp.severity) {
					trigger = comp
				}
			}
		}

		if len(members) == 0 || trigger.severity.IsNone() {
			continue
		}

		scheme := trigger.scheme

		for _, member := range members {
			if member.scheme.Name() != scheme.Name() {
				return false, errors.New(MixedSchemeCohortError{
					Cohort:  cohort.Name,
					Names:   []string{trigger.pkg.Name, member.pkg.Name},
					Schemes: []string{scheme.Name(), member.scheme.Name()},
				})
			}
		}

		base := trigger.version.OldVersion

		for _, member := range members {
			if scheme.Compare(member.version.OldVersion, base) > 0 {
				base = member.version.OldVersion
			}
		}

		newVersion, err := scheme.Bump(base, trigger.severity, policy.bumpOptions())
		if err != nil {
			return false, errors.Errorf("computing the version of cohort %s: %w", cohort.Name, err)
		}

		for _, member := range members {
			if member.version.NewVersion == newVersion && member.severity == trigger.severity {
				continue
			}

			if member != trigger {
				member.version.Reason = fmt.Sprintf("cohort %s follows %s: %s", cohort.Name, trigger.pkg.Name, trigger.version.Reason)
			}

			if err := member.stamp(newVersion, trigger.severity, policy); err != nil {
				return false, err
			}

			changed = true
		}
	}

	return changed, nil
}
