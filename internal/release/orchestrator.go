// Package release wires discovery, versioning and the ecosystem backends into the release pipeline:
// plan, prepare, publish and tag.
//
// Every phase after plan acts on a manifest, so separate CI steps release exactly the versions the plan
// step computed. Phases that change the workspace or remote state hold a run-wide lock and fan their work
// out over the runner pool.
package release

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

// LockFileName is the run-wide lock taken at the workspace root.
const LockFileName = ".releasekit.lock"

// ProgressFunc returns the observer of one phase with total units, or nil for none.
type ProgressFunc func(phase string, total int) runnerpool.Observer

// Options are the collaborators of an Orchestrator.
type Options struct {
	Table  backend.Table
	VCS    backend.VCS
	Config *config.Config
	// Forge is optional. Without one, tagging creates no forge releases.
	Forge backend.Forge
	// Runner executes hook commands.
	Runner   *shell.Runner
	Progress ProgressFunc
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	Root      string
	// RunID defaults to a random UUID.
	RunID string
}

// Orchestrator runs the release phases of one workspace.
type Orchestrator struct {
	logger    log.Logger
	table     backend.Table
	vcs       backend.VCS
	forge     backend.Forge
	cfg       *config.Config
	hooks     *hooks.Executor
	progress  ProgressFunc
	lookupEnv func(key string) (string, bool)
	root      string
	runID     string
}

// New returns an Orchestrator. Missing optional collaborators get their defaults.
func New(l log.Logger, opts Options) *Orchestrator {
	if opts.Config == nil {
		opts.Config = config.Default()
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	l = l.WithField("run_id", opts.RunID)

	if opts.Runner == nil {
		opts.Runner = shell.NewRunner(l)
	}

	return &Orchestrator{
		logger:    l,
		table:     opts.Table,
		vcs:       opts.VCS,
		forge:     opts.Forge,
		cfg:       opts.Config,
		hooks:     hooks.NewExecutor(l, opts.Runner),
		progress:  opts.Progress,
		lookupEnv: opts.LookupEnv,
		root:      opts.Root,
		runID:     opts.RunID,
	}
}

// RunID identifies this run in logs and manifests.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Discover finds the packages of every registered ecosystem concurrently and resolves internal
// dependencies across the whole workspace. Orphan dependencies are logged as warnings.
func (o *Orchestrator) Discover(ctx context.Context) (component.Packages, error) {
	ecosystems := o.table.Ecosystems()
	found := make([]component.Packages, len(ecosystems))

	g, gctx := errgroup.WithContext(ctx)

	for i, eco := range ecosystems {
		set := o.table[eco]

		g.Go(func() error {
			pkgs, err := set.Workspace.Discover(gctx, o.cfg.Excludes(eco))
			if err != nil {
				return errors.Errorf("discovering %s packages: %w", eco, err)
			}

			o.logger.Debugf("Discovered %d %s packages", len(pkgs), eco)
			found[i] = pkgs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all component.Packages

	for _, pkgs := range found {
		all = append(all, pkgs...)
	}

	all = all.Sort()
	component.ResolveInternalDeps(all)

	orphans := graph.Build(all).OrphanDeps()
	for _, name := range slices.Sorted(maps.Keys(orphans)) {
		o.logger.Warnf("Package %s depends on %s, which is not part of the workspace", name, strings.Join(orphans[name], ", "))
	}

	return all, nil
}

// lock takes the run-wide lock. Dry runs take no lock since they change nothing.
func (o *Orchestrator) lock(dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}

	lockfile := util.NewLockfile(filepath.Join(o.root, LockFileName))
	if err := lockfile.TryLock(); err != nil {
		return nil, err
	}

	return func() {
		if err := lockfile.Unlock(); err != nil {
			o.logger.Warnf("Failed to release %s: %v", LockFileName, err)
		}
	}, nil
}

func (o *Orchestrator) newRunner(phase string, total, concurrency int) *runnerpool.Runner {
	opts := []runnerpool.Option{
		runnerpool.WithConcurrency(concurrency),
		runnerpool.WithFailFast(o.cfg.FailFast),
	}

	if o.progress != nil {
		if observer := o.progress(phase, total); observer != nil {
			opts = append(opts, runnerpool.WithObserver(observer))
		}
	}

	return runnerpool.New(o.logger.WithField("phase", phase), opts...)
}

// missingEnv returns the first required variable of set that is unset or empty.
func (o *Orchestrator) missingEnv(set *backend.Set) string {
	for _, key := range set.RequiredEnv {
		if value, ok := o.lookupEnv(key); !ok || value == "" {
			return key
		}
	}

	return ""
}

// runHooks runs the event hooks of pkg from its directory. It returns a non-nil outcome when a
// command could not run or failed, and the results to attach to the unit otherwise.
func (o *Orchestrator) runHooks(ctx context.Context, event hooks.Event, pkg *component.Package, vars hooks.Vars, dryRun bool) ([]*shell.Result, *runnerpool.Outcome) {
	commands := o.cfg.HooksFor(pkg.Ecosystem, pkg.Name)[event]
	if len(commands) == 0 {
		return nil, nil
	}

	results, err := o.hooks.Run(ctx, event, commands, vars, util.JoinPath(o.root, pkg.Path), dryRun)
	if err != nil {
		outcome := runnerpool.Errored(err, results...)
		return results, &outcome
	}

	if failed := hooks.FirstFailure(results); failed != nil {
		outcome := runnerpool.OutcomeFromResult(failed, nil)
		outcome.Message = string(event) + " hook: " + outcome.Message
		outcome.Results = results

		return results, &outcome
	}

	return results, nil
}

// resolve looks up the discovered package and backend set of every named package.
func (o *Orchestrator) resolve(pkgs component.Packages, name string) (*component.Package, *backend.Set, error) {
	pkg := pkgs.Find(name)
	if pkg == nil {
		return nil, nil, errors.New(UnknownPackageError{Name: name})
	}

	set, err := o.table.Get(pkg.Ecosystem)
	if err != nil {
		return nil, nil, err
	}

	return pkg, set, nil
}
