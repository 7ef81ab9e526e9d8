package release_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/groups"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/release"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

func bumped(name, oldVersion, newVersion string, bump versioning.Bump) versioning.PackageVersion {
	return versioning.PackageVersion{
		Name:       name,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		Bump:       bump,
		Tag:        name + "-v" + newVersion,
	}
}

func unchanged(name, version, reason string) versioning.PackageVersion {
	return versioning.PackageVersion{
		Name:       name,
		OldVersion: version,
		NewVersion: version,
		Bump:       versioning.BumpNone,
		Skipped:    true,
		Reason:     reason,
	}
}

func TestDiscoverMergesEcosystems(t *testing.T) {
	t.Parallel()

	web := jsPackage("web", "1.0.0", "core", "react")
	core := &component.Package{
		Name:          "core",
		Path:          "python/core",
		ManifestPath:  "python/core/pyproject.toml",
		Version:       "1.0.0",
		Ecosystem:     component.Python,
		IsPublishable: true,
	}

	orchestrator := release.New(log.Discard(), release.Options{
		Table: backend.NewTable(
			&backend.Set{Workspace: &fakeWorkspace{eco: component.JS, pkgs: component.Packages{web}}},
			&backend.Set{Workspace: &fakeWorkspace{eco: component.Python, pkgs: component.Packages{core}}},
		),
		VCS: newFakeVCS(),
	})

	pkgs, err := orchestrator.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "web"}, pkgs.Names())
	assert.Equal(t, []string{"core"}, pkgs.Find("web").InternalDeps)
	assert.Equal(t, []string{"react"}, pkgs.Find("web").ExternalDeps)
	assert.NotEmpty(t, orchestrator.RunID())
}

func TestPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		jsPackage("core", "1.0.0"),
		jsPackage("web", "2.0.0", "core"),
		jsPackage("docs", "0.1.0"),
	)
	f.vcs.withCommit("packages/core", "feat: add api").withCommit("packages/docs", "fix: typo")
	f.cfg.Packages = map[string]*config.PackageConfig{"docs": {Skip: true}}

	plan, err := f.orchestrator().Plan(context.Background(), release.PlanOptions{})
	require.NoError(t, err)

	m := plan.Manifest
	assert.Equal(t, headSHA, m.GitSHA)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "v1.1.0", m.UmbrellaTag)

	core, ok := m.Get("core")
	require.True(t, ok)
	assert.Equal(t, "1.1.0", core.NewVersion)
	assert.Equal(t, "core-v1.1.0", core.Tag)

	docs, ok := m.Get("docs")
	require.True(t, ok)
	assert.True(t, docs.Skipped)
	assert.Equal(t, release.ReasonSkippedByConfig, docs.Reason)
	assert.Equal(t, "0.1.0", docs.NewVersion)

	web, ok := m.Get("web")
	require.True(t, ok)
	assert.False(t, web.Bumped())

	require.Len(t, m.Bumped(), 1)
	assert.Equal(t, []string{"core", "docs", "web"}, plan.Packages.Names())
	assert.Equal(t, [][]string{{"core", "docs"}, {"web"}}, plan.Validation.Waves)
}

func TestPlanGroupAndOverrides(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		jsPackage("core", "1.0.0"),
		jsPackage("plugin-a", "1.0.0", "core"),
	)
	f.cfg.Groups = map[string][]string{"plugins": {"plugin-*"}}

	plan, err := f.orchestrator().Plan(context.Background(), release.PlanOptions{
		Group: "plugins",
		Force: versioning.BumpPatch,
	})
	require.NoError(t, err)

	require.Len(t, plan.Manifest.Packages, 1)

	pluginA := plan.Manifest.Packages[0]
	assert.Equal(t, "plugin-a", pluginA.Name)
	assert.Equal(t, "1.0.1", pluginA.NewVersion)
	assert.Equal(t, []string{"plugin-a"}, plan.Graph.Names())

	_, err = f.orchestrator().Plan(context.Background(), release.PlanOptions{Group: "nope"})

	var groupErr groups.UnknownGroupError
	require.ErrorAs(t, err, &groupErr)
}

func TestPlanSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"), jsPackage("web", "1.0.0"))
	f.vcs.withCommit("packages/core", "fix: leak")

	plan, err := f.orchestrator().Plan(context.Background(), release.PlanOptions{Snapshot: true, SnapshotID: "abc1234"})
	require.NoError(t, err)

	core, _ := plan.Manifest.Get("core")
	assert.Equal(t, "0.0.0-dev.abc1234", core.NewVersion)
	assert.Equal(t, versioning.BumpSnapshot, core.Bump)
	assert.Empty(t, core.Tag)
	assert.Empty(t, plan.Manifest.UmbrellaTag)

	web, _ := plan.Manifest.Get("web")
	assert.Equal(t, "1.0.0", web.NewVersion)
}

func TestPlanSnapshotDefaultsToShortHead(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	f.vcs.withCommit("packages/core", "feat: streaming")

	plan, err := f.orchestrator().Plan(context.Background(), release.PlanOptions{Snapshot: true})
	require.NoError(t, err)

	core, _ := plan.Manifest.Get("core")
	assert.Equal(t, "0.0.0-dev.0123456789ab", core.NewVersion)
}

func TestPlanRejectsCycles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("a", "1.0.0", "b"), jsPackage("b", "1.0.0", "a"))

	_, err := f.orchestrator().Plan(context.Background(), release.PlanOptions{})

	var cycleErr graph.DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		jsPackage("core", "1.0.0"),
		jsPackage("web", "2.0.0", "core"),
		jsPackage("other", "1.0.0"),
	)

	m := manifest.New(headSHA, "", []versioning.PackageVersion{
		bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor),
		unchanged("other", "1.0.0", "no changes"),
		unchanged("web", "2.0.0", "no changes"),
	})

	results, err := f.orchestrator().Prepare(context.Background(), m, false)
	require.NoError(t, err)

	indexed := byName(t, results)
	require.Len(t, indexed, 3)
	assert.Equal(t, "1.1.0", indexed["core"].Outcome.Message)
	assert.Equal(t, "dependencies: core", indexed["web"].Outcome.Message)
	assert.Equal(t, runnerpool.StatusPassed, indexed["lock:js"].Status())

	assert.ElementsMatch(t, []string{
		"packages/core/package.json=1.1.0",
		"packages/web/package.json:core=1.1.0",
	}, f.ws.rewrites)
	assert.Equal(t, []string{"lock"}, f.pm.calls)
}

func TestPrepareDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	m := manifest.New(headSHA, "", []versioning.PackageVersion{bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor)})

	results, err := f.orchestrator().Prepare(context.Background(), m, true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, f.ws.rewrites)
	assert.NoFileExists(t, filepath.Join(f.root, release.LockFileName))
}

func TestPrepareUnknownPackage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	m := manifest.New(headSHA, "", []versioning.PackageVersion{bumped("gone", "1.0.0", "1.1.0", versioning.BumpMinor)})

	_, err := f.orchestrator().Prepare(context.Background(), m, true)

	var unknownErr release.UnknownPackageError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "gone", unknownErr.Name)
}

func TestPublishUnknownPackage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	m := manifest.New(headSHA, "", []versioning.PackageVersion{
		bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor),
		bumped("gone", "1.0.0", "1.1.0", versioning.BumpMinor),
	})

	_, err := f.orchestrator().Publish(context.Background(), m, true)

	var unknownErr release.UnknownPackageError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "gone", unknownErr.Name)
}

func TestRunLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	m := manifest.New(headSHA, "", nil)

	lockfile := util.NewLockfile(filepath.Join(f.root, release.LockFileName))
	require.NoError(t, lockfile.TryLock())

	_, err := f.orchestrator().Publish(context.Background(), m, false)

	var heldErr util.LockHeldError
	require.ErrorAs(t, err, &heldErr)

	require.NoError(t, lockfile.Unlock())

	_, err = f.orchestrator().Publish(context.Background(), m, false)
	require.NoError(t, err)
}

func TestPublishWaves(t *testing.T) {
	t.Parallel()

	docs := jsPackage("docs", "1.0.0")
	docs.IsPublishable = false

	f := newFixture(t,
		jsPackage("core", "1.0.0"),
		jsPackage("web", "2.0.0", "core"),
		jsPackage("cli", "1.0.0"),
		docs,
	)
	f.pm.failBuild["core"] = true
	f.registry.published["cli@1.0.1"] = true

	m := manifest.New(headSHA, "", []versioning.PackageVersion{
		bumped("cli", "1.0.0", "1.0.1", versioning.BumpPatch),
		bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor),
		unchanged("docs", "1.0.0", versioning.ReasonNotPublishable),
		bumped("web", "2.0.0", "2.0.1", versioning.BumpPatch),
	})

	results, err := f.orchestrator().Publish(context.Background(), m, true)
	require.NoError(t, err)

	indexed := byName(t, results)
	require.Len(t, indexed, 4)

	assert.Equal(t, runnerpool.StatusFailed, indexed["core"].Status())
	assert.Contains(t, indexed["core"].Outcome.Message, "build: ")
	assert.Contains(t, indexed["core"].Outcome.Message, "compile error")

	assert.Equal(t, runnerpool.StatusSkipped, indexed["web"].Status())
	assert.Equal(t, "dependency core did not pass", indexed["web"].Outcome.Message)

	assert.Equal(t, runnerpool.StatusPassed, indexed["cli"].Status())
	assert.Equal(t, release.MessageAlreadyPublished, indexed["cli"].Outcome.Message)

	assert.Equal(t, runnerpool.StatusSkipped, indexed["docs"].Status())
	assert.Equal(t, versioning.ReasonNotPublishable, indexed["docs"].Outcome.Message)

	assert.ElementsMatch(t, []string{"build core", "build cli"}, f.pm.calls)
}

func TestPublishPollsRegistry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"), jsPackage("web", "1.0.0"))
	f.registry.unavailable["web"] = true
	f.cfg.Poll = config.PollConfig{}

	core := bumped("core", "1.0.0", "1.1.0-rc.0", versioning.BumpPrerelease)
	m := manifest.New(headSHA, "", []versioning.PackageVersion{core, bumped("web", "1.0.0", "1.0.1", versioning.BumpPatch)})

	results, err := f.orchestrator().Publish(context.Background(), m, false)
	require.NoError(t, err)

	indexed := byName(t, results)
	assert.Equal(t, runnerpool.StatusPassed, indexed["core"].Status())
	assert.Equal(t, "published to fake-registry", indexed["core"].Outcome.Message)

	assert.Equal(t, runnerpool.StatusFailed, indexed["web"].Status())
	assert.Contains(t, indexed["web"].Outcome.Message, "did not appear on fake-registry")

	assert.Contains(t, f.pm.calls, "publish core next")
	assert.ElementsMatch(t, []string{"core@1.1.0-rc.0", "web@1.0.1"}, f.registry.polled)
}

func TestPublishRequiredEnv(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	f.set.RequiredEnv = []string{"NPM_TOKEN"}

	m := manifest.New(headSHA, "", []versioning.PackageVersion{bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor)})

	results, err := f.orchestrator().Publish(context.Background(), m, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, runnerpool.StatusSkipped, results[0].Status())
	assert.Equal(t, "missing required environment variable NPM_TOKEN", results[0].Outcome.Message)
	assert.Empty(t, f.pm.calls)

	f.env["NPM_TOKEN"] = "secret"

	results, err = f.orchestrator().Publish(context.Background(), m, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, runnerpool.StatusPassed, results[0].Status())
	assert.Equal(t, "dry run", results[0].Outcome.Message)
	assert.Empty(t, f.registry.polled)
}

func TestTag(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"), jsPackage("web", "2.0.0"))
	f.vcs = newFakeVCS("core-v1.0.0", "web-v2.0.1").withCommit("packages/core", "feat(api): add endpoint")
	f.forge.existing["web-v2.0.1"] = true

	m := manifest.New(headSHA, "v2.0.1", []versioning.PackageVersion{
		bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor),
		bumped("web", "2.0.0", "2.0.1", versioning.BumpPatch),
	})

	results, err := f.orchestrator().Tag(context.Background(), m, false)
	require.NoError(t, err)

	indexed := byName(t, results)
	require.Len(t, indexed, 6)

	for name, res := range indexed {
		assert.Equal(t, runnerpool.StatusPassed, res.Status(), name)
	}

	assert.Equal(t, "core-v1.1.0", indexed["core"].Outcome.Message)
	assert.Equal(t, release.MessageTagExists, indexed["web"].Outcome.Message)
	assert.Equal(t, "created fake-forge release", indexed["release:core"].Outcome.Message)
	assert.Equal(t, "release already exists", indexed["release:web"].Outcome.Message)

	assert.Equal(t, []string{"core-v1.1.0", "v2.0.1"}, f.vcs.created)
	assert.Equal(t, [][]string{{"core-v1.1.0", "web-v2.0.1", "v2.0.1"}}, f.vcs.pushed)

	require.Len(t, f.forge.releases, 1)

	req := f.forge.releases[0]
	assert.Equal(t, "core-v1.1.0", req.Tag)
	assert.Equal(t, "core 1.1.0", req.Title)
	assert.Contains(t, req.Body, "### Features")
	assert.Contains(t, req.Body, "**api:** add endpoint (deadbee)")
	assert.False(t, req.Prerelease)
}

func TestTagDryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, jsPackage("core", "1.0.0"))
	m := manifest.New(headSHA, "", []versioning.PackageVersion{bumped("core", "1.0.0", "1.1.0", versioning.BumpMinor)})

	results, err := f.orchestrator().Tag(context.Background(), m, true)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Empty(t, f.vcs.created)
	assert.Empty(t, f.vcs.pushed)
	assert.Empty(t, f.forge.releases)
}

func TestRenderNotes(t *testing.T) {
	t.Parallel()

	notes := release.RenderNotes([]backend.Commit{
		{SHA: "1111111aaaa", Subject: "feat!: drop python 3.8"},
		{SHA: "2222222bbbb", Subject: "fix(core): handle empty input"},
		{SHA: "3333333cccc", Subject: "docs: typo"},
		{SHA: "4444444dddd", Subject: "chore(release): core 1.2.0"},
		{SHA: "5555555eeee", Subject: "feat: add retries"},
	})

	assert.Equal(t, `### Breaking changes

- drop python 3.8 (1111111)

### Features

- add retries (5555555)

### Bug fixes

- **core:** handle empty input (2222222)

### Other changes

- typo (3333333)
`, notes)

	assert.Equal(t, "No notable changes.\n", release.RenderNotes(nil))
}

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\nname = \"app\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name": "app"}`), 0o644))

	cfg := config.Default()
	runner := shell.NewRunner(log.Discard())

	table, err := release.DefaultTable(log.Discard(), runner, root, cfg)
	require.NoError(t, err)
	assert.Equal(t, []component.Ecosystem{component.Python, component.JS}, table.Ecosystems())

	disabled := false
	cfg.Ecosystems = map[string]*config.EcosystemConfig{
		"js":     {Enabled: &disabled},
		"python": {RequiredEnv: []string{"UV_PUBLISH_TOKEN"}},
	}

	table, err = release.DefaultTable(log.Discard(), runner, root, cfg)
	require.NoError(t, err)
	assert.Equal(t, []component.Ecosystem{component.Python}, table.Ecosystems())

	set, err := table.Get(component.Python)
	require.NoError(t, err)
	assert.Equal(t, "uv", set.PackageManager.Name())
	assert.Equal(t, []string{"UV_PUBLISH_TOKEN"}, set.RequiredEnv)
}
