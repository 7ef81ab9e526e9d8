package release_test

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/release"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const headSHA = "0123456789abcdef0123456789abcdef01234567"

func jsPackage(name, version string, deps ...string) *component.Package {
	return &component.Package{
		Name:          name,
		Path:          "packages/" + name,
		ManifestPath:  "packages/" + name + "/package.json",
		Version:       version,
		Ecosystem:     component.JS,
		AllDeps:       deps,
		IsPublishable: true,
	}
}

type fakeVCS struct {
	commits map[string][]backend.Commit
	tags    []string
	created []string
	pushed  [][]string
	mu      sync.Mutex
}

func newFakeVCS(tags ...string) *fakeVCS {
	return &fakeVCS{tags: tags, commits: map[string][]backend.Commit{}}
}

func (vcs *fakeVCS) withCommit(path, subject string) *fakeVCS {
	vcs.commits[path] = append(vcs.commits[path], backend.Commit{SHA: "deadbeefcafe", Subject: subject})
	return vcs
}

func (vcs *fakeVCS) IsClean(context.Context) (bool, error)      { return true, nil }
func (vcs *fakeVCS) CurrentSHA(context.Context) (string, error) { return headSHA, nil }

func (vcs *fakeVCS) Tags(context.Context) ([]string, error) {
	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	return slices.Clone(vcs.tags), nil
}

func (vcs *fakeVCS) Log(_ context.Context, opts backend.LogOptions) ([]backend.Commit, error) {
	var commits []backend.Commit

	for _, path := range opts.Paths {
		commits = append(commits, vcs.commits[path]...)
	}

	return commits, nil
}

func (vcs *fakeVCS) TagExists(_ context.Context, name string) (bool, error) {
	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	return slices.Contains(vcs.tags, name), nil
}

func (vcs *fakeVCS) Tag(_ context.Context, name, _ string, dryRun bool) (*shell.Result, error) {
	if dryRun {
		return shell.DryRunResult("git", "tag", name), nil
	}

	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	vcs.tags = append(vcs.tags, name)
	vcs.created = append(vcs.created, name)

	return &shell.Result{Command: []string{"git", "tag", name}}, nil
}

func (vcs *fakeVCS) Push(_ context.Context, opts backend.PushOptions, dryRun bool) (*shell.Result, error) {
	if dryRun {
		return shell.DryRunResult("git", "push"), nil
	}

	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	vcs.pushed = append(vcs.pushed, opts.Tags)

	return &shell.Result{Command: []string{"git", "push"}}, nil
}

func (vcs *fakeVCS) DiffFiles(context.Context, string) ([]string, error) { return nil, nil }

type fakeWorkspace struct {
	eco      component.Ecosystem
	pkgs     component.Packages
	rewrites []string
	mu       sync.Mutex
}

func (ws *fakeWorkspace) Ecosystem() component.Ecosystem { return ws.eco }
func (ws *fakeWorkspace) Root() string                   { return "." }

// Discover returns copies so that dependency resolution never leaks between calls.
func (ws *fakeWorkspace) Discover(context.Context, []string) (component.Packages, error) {
	pkgs := make(component.Packages, 0, len(ws.pkgs))

	for _, pkg := range ws.pkgs {
		clone := *pkg
		clone.AllDeps = slices.Clone(pkg.AllDeps)
		clone.InternalDeps = slices.Clone(pkg.InternalDeps)
		pkgs = append(pkgs, &clone)
	}

	return pkgs, nil
}

func (ws *fakeWorkspace) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	ws.record(dryRun, manifestPath+"="+newVersion)

	for _, pkg := range ws.pkgs {
		if pkg.ManifestPath == manifestPath {
			return pkg.Version, nil
		}
	}

	return "", nil
}

func (ws *fakeWorkspace) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	ws.record(dryRun, manifestPath+":"+dep+"="+newVersion)
	return nil
}

func (ws *fakeWorkspace) record(dryRun bool, entry string) {
	if dryRun {
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.rewrites = append(ws.rewrites, entry)
}

type fakePackageManager struct {
	failBuild map[string]bool
	calls     []string
	mu        sync.Mutex
}

func (pm *fakePackageManager) record(call string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.calls = append(pm.calls, call)
}

func (pm *fakePackageManager) Name() string { return "fake" }

func (pm *fakePackageManager) Build(_ context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error) {
	pm.record("build " + pkg.Name)

	if pm.failBuild[pkg.Name] {
		return &shell.Result{Command: []string{"fake", "build", pkg.Name}, ReturnCode: 1, Stderr: "compile error\n"}, nil
	}

	if dryRun {
		return shell.DryRunResult("fake", "build", pkg.Name), nil
	}

	return &shell.Result{Command: []string{"fake", "build", pkg.Name}}, nil
}

func (pm *fakePackageManager) Publish(_ context.Context, pkg *component.Package, opts backend.PublishOptions) (*shell.Result, error) {
	pm.record("publish " + pkg.Name + " " + opts.DistTag)

	if opts.DryRun {
		return shell.DryRunResult("fake", "publish", pkg.Name), nil
	}

	return &shell.Result{Command: []string{"fake", "publish", pkg.Name}}, nil
}

func (pm *fakePackageManager) Lock(_ context.Context, dryRun bool) (*shell.Result, error) {
	pm.record("lock")

	if dryRun {
		return shell.DryRunResult("fake", "install"), nil
	}

	return &shell.Result{Command: []string{"fake", "install"}}, nil
}

func (pm *fakePackageManager) VersionBump(context.Context, *component.Package, string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (pm *fakePackageManager) ResolveCheck(context.Context, *component.Package, string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (pm *fakePackageManager) SmokeTest(context.Context, *component.Package, string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

type fakeRegistry struct {
	published   map[string]bool
	unavailable map[string]bool
	polled      []string
	mu          sync.Mutex
}

func (reg *fakeRegistry) Name() string { return "fake-registry" }

func (reg *fakeRegistry) CheckPublished(_ context.Context, name, version string) (bool, error) {
	return reg.published[name+"@"+version], nil
}

func (reg *fakeRegistry) PollAvailable(_ context.Context, name, version string, _ backend.PollOptions) (bool, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.polled = append(reg.polled, name+"@"+version)

	return !reg.unavailable[name], nil
}

func (reg *fakeRegistry) ProjectExists(context.Context, string) (bool, error)    { return true, nil }
func (reg *fakeRegistry) LatestVersion(context.Context, string) (string, error)  { return "", nil }
func (reg *fakeRegistry) ListVersions(context.Context, string) ([]string, error) { return nil, nil }

func (reg *fakeRegistry) VerifyChecksum(context.Context, string, string, map[string]string) (*backend.ChecksumReport, error) {
	return &backend.ChecksumReport{Unsupported: true}, nil
}

func (reg *fakeRegistry) YankVersion(context.Context, string, string, string, bool) (bool, error) {
	return false, nil
}

type fakeForge struct {
	existing map[string]bool
	releases []backend.ReleaseRequest
	mu       sync.Mutex
}

func (forge *fakeForge) Name() string                     { return "fake-forge" }
func (forge *fakeForge) IsAvailable(context.Context) bool { return true }

func (forge *fakeForge) ReleaseExists(_ context.Context, tag string) (bool, error) {
	return forge.existing[tag], nil
}

func (forge *fakeForge) CreateRelease(_ context.Context, req backend.ReleaseRequest, dryRun bool) (*shell.Result, error) {
	if dryRun {
		return shell.DryRunResult("POST", "releases"), nil
	}

	forge.mu.Lock()
	defer forge.mu.Unlock()

	forge.releases = append(forge.releases, req)

	return &shell.Result{Command: []string{"POST", "releases"}}, nil
}

func (forge *fakeForge) DeleteRelease(context.Context, string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (forge *fakeForge) CreatePR(context.Context, backend.PullRequestRequest, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (forge *fakeForge) MergePR(context.Context, int, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (forge *fakeForge) AddLabels(context.Context, int, []string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

func (forge *fakeForge) RemoveLabels(context.Context, int, []string, bool) (*shell.Result, error) {
	return shell.NoOpResult("unused"), nil
}

type fixture struct {
	ws       *fakeWorkspace
	pm       *fakePackageManager
	registry *fakeRegistry
	vcs      *fakeVCS
	forge    *fakeForge
	cfg      *config.Config
	env      map[string]string
	set      *backend.Set
	root     string
}

func newFixture(t *testing.T, pkgs ...*component.Package) *fixture {
	t.Helper()

	ws := &fakeWorkspace{eco: component.JS, pkgs: pkgs}
	pm := &fakePackageManager{failBuild: map[string]bool{}}
	reg := &fakeRegistry{published: map[string]bool{}, unavailable: map[string]bool{}}

	return &fixture{
		ws:       ws,
		pm:       pm,
		registry: reg,
		vcs:      newFakeVCS(),
		forge:    &fakeForge{existing: map[string]bool{}},
		cfg:      config.Default(),
		env:      map[string]string{},
		set:      &backend.Set{Workspace: ws, PackageManager: pm, Registry: reg},
		root:     t.TempDir(),
	}
}

func (f *fixture) orchestrator() *release.Orchestrator {
	return release.New(log.Discard(), release.Options{
		Table:  backend.NewTable(f.set),
		VCS:    f.vcs,
		Forge:  f.forge,
		Config: f.cfg,
		Root:   f.root,
		RunID:  "run-1",
		LookupEnv: func(key string) (string, bool) {
			value, ok := f.env[key]
			return value, ok
		},
	})
}

func byName(t *testing.T, results []*runnerpool.Result) map[string]*runnerpool.Result {
	t.Helper()

	indexed := make(map[string]*runnerpool.Result, len(results))

	for _, res := range results {
		require.NotContains(t, indexed, res.Name, "duplicate result")
		indexed[res.Name] = res
	}

	return indexed
}
