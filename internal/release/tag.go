package release

import (
	"context"
	"fmt"
	"slices"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	umbrellaUnit  = "umbrella"
	pushUnit      = "push"
	releasePrefix = "release:"

	// MessageTagExists is the outcome of a tag that was created by an earlier run.
	MessageTagExists = "tag already exists"
)

// Tag creates the tag of every bumped package and the umbrella tag, pushes them, then creates a
// forge release per package and runs the after_tag hooks. Tags that already exist are kept, so an
// interrupted run can be repeated.
func (o *Orchestrator) Tag(ctx context.Context, releaseManifest *manifest.ReleaseManifest, dryRun bool) ([]*runnerpool.Result, error) {
	unlock, err := o.lock(dryRun)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pkgs, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := o.vcs.Tags(ctx)
	if err != nil {
		return nil, errors.Errorf("listing tags: %w", err)
	}

	var (
		tagUnits, releaseUnits []*runnerpool.Unit
		tagged, tags           []string
		forgeReady             = o.forge != nil && o.forge.IsAvailable(ctx)
		policy                 = o.cfg.VersionPolicy()
	)

	for _, pv := range releaseManifest.Bumped() {
		pkg := pkgs.Find(pv.Name)
		if pkg == nil {
			return nil, errors.New(UnknownPackageError{Name: pv.Name})
		}

		tagUnits = append(tagUnits, &runnerpool.Unit{
			Name: pv.Name,
			Preflight: func() string {
				if pv.Tag == "" {
					return "snapshot versions are not tagged"
				}

				return ""
			},
			Run: func(ctx context.Context) runnerpool.Outcome {
				return o.createTag(ctx, pv.Tag, fmt.Sprintf("Release %s %s", pv.Name, pv.NewVersion), dryRun)
			},
		})

		if pv.Tag == "" {
			continue
		}

		tagged = append(tagged, pv.Name)
		tags = append(tags, pv.Tag)

		previous, _ := versioning.LastReleaseTag(without(existing, pv.Tag), policy.TagFormat(pkg.Ecosystem), pkg, versioning.SchemeFor(pkg.Ecosystem))

		releaseUnits = append(releaseUnits, &runnerpool.Unit{
			Name: releasePrefix + pv.Name,
			Deps: []string{pushUnit},
			Run: func(ctx context.Context) runnerpool.Outcome {
				return o.release(ctx, pkg, pv, previous, forgeReady, dryRun)
			},
		})
	}

	waves := [][]*runnerpool.Unit{tagUnits}
	pushDeps := tagged

	if tag := releaseManifest.UmbrellaTag; tag != "" {
		waves = append(waves, []*runnerpool.Unit{{
			Name: umbrellaUnit,
			Deps: tagged,
			Run: func(ctx context.Context) runnerpool.Outcome {
				return o.createTag(ctx, tag, "Release "+tag, dryRun)
			},
		}})

		tags = append(tags, tag)
		pushDeps = []string{umbrellaUnit}
	}

	if len(tags) > 0 {
		waves = append(waves, []*runnerpool.Unit{{
			Name: pushUnit,
			Deps: pushDeps,
			Run: func(ctx context.Context) runnerpool.Outcome {
				return runnerpool.OutcomeFromResult(o.vcs.Push(ctx, backend.PushOptions{Tags: tags}, dryRun))
			},
		}}, releaseUnits)
	}

	total := 0
	for _, wave := range waves {
		total += len(wave)
	}

	// git takes a repository wide lock for every ref update.
	runner := o.newRunner("tag", total, 1)

	return runner.RunWaves(ctx, waves), nil
}

func (o *Orchestrator) createTag(ctx context.Context, tag, message string, dryRun bool) runnerpool.Outcome {
	exists, err := o.vcs.TagExists(ctx, tag)
	if err != nil {
		return runnerpool.Errored(err)
	}

	if exists {
		log.LoggerFromContext(ctx).Infof("Tag %s already exists", tag)
		return runnerpool.Passed(MessageTagExists)
	}

	outcome := runnerpool.OutcomeFromResult(o.vcs.Tag(ctx, tag, message, dryRun))
	if outcome.Status == runnerpool.StatusPassed {
		outcome.Message = tag
	}

	return outcome
}

// release creates the forge release of the package tag when a forge is available, then runs the
// after_tag hooks.
func (o *Orchestrator) release(ctx context.Context, pkg *component.Package, pv versioning.PackageVersion, previous string, forgeReady, dryRun bool) runnerpool.Outcome {
	message := "no forge available"

	if forgeReady {
		outcome, created := o.forgeRelease(ctx, pkg, pv, previous, dryRun)
		if outcome != nil {
			return *outcome
		}

		message = created
	}

	results, failed := o.runHooks(ctx, hooks.AfterTag, pkg, hooks.Vars{Name: pkg.Name, Version: pv.NewVersion, Tag: pv.Tag}, dryRun)
	if failed != nil {
		return *failed
	}

	return runnerpool.Passed(message, results...)
}

func (o *Orchestrator) forgeRelease(ctx context.Context, pkg *component.Package, pv versioning.PackageVersion, previous string, dryRun bool) (*runnerpool.Outcome, string) {
	exists, err := o.forge.ReleaseExists(ctx, pv.Tag)
	if err != nil {
		outcome := runnerpool.Errored(err)
		return &outcome, ""
	}

	if exists {
		return nil, "release already exists"
	}

	commits, err := o.vcs.Log(ctx, backend.LogOptions{Since: previous, Paths: []string{pkg.Path}})
	if err != nil {
		outcome := runnerpool.Errored(err)
		return &outcome, ""
	}

	res, err := o.forge.CreateRelease(ctx, backend.ReleaseRequest{
		Tag:        pv.Tag,
		Title:      pkg.Name + " " + pv.NewVersion,
		Body:       RenderNotes(commits),
		Draft:      o.cfg.Forge.Draft,
		Prerelease: pv.Bump == versioning.BumpPrerelease,
	}, dryRun)

	if outcome := runnerpool.OutcomeFromResult(res, err); outcome.Status != runnerpool.StatusPassed {
		outcome.Message = "forge release: " + outcome.Message
		return &outcome, ""
	}

	return nil, "created " + o.forge.Name() + " release"
}

func without(values []string, value string) []string {
	return slices.DeleteFunc(slices.Clone(values), func(v string) bool { return v == value })
}
