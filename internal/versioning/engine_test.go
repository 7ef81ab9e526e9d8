package versioning_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsPackage(name, version string, deps ...string) *component.Package {
	return &component.Package{
		Name:          name,
		Path:          "packages/" + name,
		ManifestPath:  "packages/" + name + "/package.json",
		Version:       version,
		Ecosystem:     component.JS,
		InternalDeps:  deps,
		IsPublishable: true,
	}
}

func byName(versions []versioning.PackageVersion) map[string]versioning.PackageVersion {
	result := make(map[string]versioning.PackageVersion, len(versions))
	for _, pv := range versions {
		result[pv.Name] = pv
	}

	return result
}

func TestComputeVersions(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{
		jsPackage("core", "1.0.0"),
		jsPackage("plugin-a", "1.0.0", "core"),
		jsPackage("plugin-b", "0.2.0", "core"),
	}

	vcs := newFakeVCS("core-v0.9.0", "core-v1.0.0", "plugin-a-v1.0.0").
		withCommits("packages/core", "fix: one", "feat: two").
		withCommits("packages/plugin-b", "fix: three")

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, versioning.Policy{})
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []string{"core", "plugin-a", "plugin-b"}, []string{versions[0].Name, versions[1].Name, versions[2].Name})

	core := versions[0]
	assert.Equal(t, "1.0.0", core.OldVersion)
	assert.Equal(t, "1.1.0", core.NewVersion)
	assert.Equal(t, versioning.BumpMinor, core.Bump)
	assert.Equal(t, "core-v1.1.0", core.Tag)
	assert.True(t, core.Bumped())

	pluginA := versions[1]
	assert.True(t, pluginA.Skipped)
	assert.Equal(t, versioning.BumpNone, pluginA.Bump)
	assert.Equal(t, "1.0.0", pluginA.NewVersion)
	assert.Empty(t, pluginA.Tag)

	pluginB := versions[2]
	assert.Equal(t, "0.2.1", pluginB.NewVersion)

	assert.Equal(t, "core-v1.0.0", vcs.sinceFor("packages/core"))
	assert.Equal(t, "plugin-a-v1.0.0", vcs.sinceFor("packages/plugin-a"))
	assert.Empty(t, vcs.sinceFor("packages/plugin-b"))
}

func TestLastReleaseTag(t *testing.T) {
	t.Parallel()

	pkg := jsPackage("core", "2.0.0")
	tags := []string{"core-v1.0.0", "core-v1.10.0", "core-v1.2.0", "core-vbogus", "core-extra-v9.0.0", "other-v3.0.0"}

	tag, version := versioning.LastReleaseTag(tags, versioning.DefaultTagFormat, pkg, versioning.SemVer{})
	assert.Equal(t, "core-v1.10.0", tag)
	assert.Equal(t, "1.10.0", version)

	pkg.Version = "1.2.0"
	tag, _ = versioning.LastReleaseTag(tags, versioning.DefaultTagFormat, pkg, versioning.SemVer{})
	assert.Equal(t, "core-v1.2.0", tag)

	tag, version = versioning.LastReleaseTag(nil, versioning.DefaultTagFormat, pkg, versioning.SemVer{})
	assert.Empty(t, tag)
	assert.Empty(t, version)
}

func TestComputeVersionsNotPublishable(t *testing.T) {
	t.Parallel()

	pkg := jsPackage("example", "1.0.0")
	pkg.IsPublishable = false

	vcs := newFakeVCS().withCommits("packages/example", "feat!: rewrite")

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), component.Packages{pkg}, vcs, versioning.Policy{Force: versioning.BumpMajor})
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].Skipped)
	assert.Equal(t, versioning.ReasonNotPublishable, versions[0].Reason)
	assert.Equal(t, "1.0.0", versions[0].NewVersion)
}

func TestComputeVersionsCohortTakesMaxBump(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{
		jsPackage("sdk-a", "1.0.0"),
		jsPackage("sdk-b", "1.2.0"),
		jsPackage("sdk-c", "1.1.0"),
		jsPackage("tool", "3.0.0"),
	}

	vcs := newFakeVCS().
		withCommits("packages/sdk-a", "fix: a").
		withCommits("packages/sdk-b", "feat: b").
		withCommits("packages/tool", "fix: tool")

	policy := versioning.Policy{Cohorts: map[string][]string{"sdk": {"sdk-*"}}}

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, policy)
	require.NoError(t, err)

	result := byName(versions)

	for _, name := range []string{"sdk-a", "sdk-b", "sdk-c"} {
		assert.Equal(t, "1.3.0", result[name].NewVersion, name)
		assert.Equal(t, versioning.BumpMinor, result[name].Bump, name)
		assert.False(t, result[name].Skipped, name)
		assert.Equal(t, name+"-v1.3.0", result[name].Tag, name)
	}

	assert.Contains(t, result["sdk-c"].Reason, "cohort sdk follows sdk-b")
	assert.Equal(t, "3.0.1", result["tool"].NewVersion)
}

func TestComputeVersionsCohortRejectsMixedSchemes(t *testing.T) {
	t.Parallel()

	python := &component.Package{
		Name:          "sdk-py",
		Path:          "python/sdk",
		ManifestPath:  "python/sdk/pyproject.toml",
		Version:       "1.0.0",
		Ecosystem:     component.Python,
		IsPublishable: true,
	}

	pkgs := component.Packages{jsPackage("sdk-js", "1.0.0"), python}
	vcs := newFakeVCS().withCommits("packages/sdk-js", "feat: js")

	policy := versioning.Policy{Cohorts: map[string][]string{"sdk": {"sdk-*"}}}

	_, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, policy)
	require.Error(t, err)

	var mixedErr versioning.MixedSchemeCohortError
	require.ErrorAs(t, err, &mixedErr)
	assert.Equal(t, "sdk", mixedErr.Cohort)
	assert.ElementsMatch(t, []string{versioning.SchemeSemVer, versioning.SchemePEP440}, mixedErr.Schemes)
}

func TestComputeVersionsCohortMembersShareVersion(t *testing.T) {
	t.Parallel()

	subjects := []string{"", "fix: x", "feat: y", "feat!: z"}

	for i, first := range subjects {
		for j, second := range subjects {
			t.Run(fmt.Sprintf("%d-%d", i, j), func(t *testing.T) {
				t.Parallel()

				pkgs := component.Packages{jsPackage("a", "0.3.0"), jsPackage("b", "1.4.2")}

				vcs := newFakeVCS()
				if first != "" {
					vcs.withCommits("packages/a", first)
				}

				if second != "" {
					vcs.withCommits("packages/b", second)
				}

				policy := versioning.Policy{Cohorts: map[string][]string{"all": {"*"}}}

				versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, policy)
				require.NoError(t, err)

				assert.Equal(t, versions[0].Bump, versions[1].Bump)
				assert.Equal(t, versions[0].Skipped, versions[1].Skipped)
				assert.Equal(t, first == "" && second == "", versions[0].Skipped)

				if !versions[0].Skipped {
					assert.Equal(t, versions[0].NewVersion, versions[1].NewVersion)
				}
			})
		}
	}
}

func TestComputeVersionsPropagation(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{
		jsPackage("core", "1.0.0"),
		jsPackage("middle", "1.0.0", "core"),
		jsPackage("leaf", "1.0.0", "middle"),
		jsPackage("unrelated", "1.0.0"),
	}

	vcs := newFakeVCS().withCommits("packages/core", "feat: api")

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, versioning.Policy{})
	require.NoError(t, err)
	assert.True(t, byName(versions)["middle"].Skipped)

	versions, err = versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, versioning.Policy{PropagateToDependents: true})
	require.NoError(t, err)

	result := byName(versions)
	assert.Equal(t, "1.1.0", result["core"].NewVersion)
	assert.Equal(t, "1.0.1", result["middle"].NewVersion)
	assert.Equal(t, "dependency core bumped to 1.1.0", result["middle"].Reason)
	assert.Equal(t, "1.0.1", result["leaf"].NewVersion)
	assert.True(t, result["unrelated"].Skipped)
}

func TestComputeVersionsForceAndPrerelease(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{jsPackage("core", "1.0.0"), jsPackage("cli", "2.1.0")}
	vcs := newFakeVCS().withCommits("packages/core", "feat: api")

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, versioning.Policy{Force: versioning.BumpPatch})
	require.NoError(t, err)

	result := byName(versions)
	assert.Equal(t, "1.1.0", result["core"].NewVersion)
	assert.Equal(t, "2.1.1", result["cli"].NewVersion)
	assert.Equal(t, "forced patch", result["cli"].Reason)

	versions, err = versioning.ComputeVersions(context.Background(), log.Discard(), pkgs, vcs, versioning.Policy{Prerelease: "rc"})
	require.NoError(t, err)

	result = byName(versions)
	assert.Equal(t, "1.1.0-rc.1", result["core"].NewVersion)
	assert.Equal(t, versioning.BumpPrerelease, result["core"].Bump)
	assert.Equal(t, "core-v1.1.0-rc.1", result["core"].Tag)
}

func TestComputeVersionsGoModules(t *testing.T) {
	t.Parallel()

	nested := &component.Package{Name: "example.com/repo/sdk/go", Path: "sdk/go", Version: "0.0.0", Ecosystem: component.Go, IsPublishable: true}
	root := &component.Package{Name: "example.com/repo", Path: ".", Version: "0.0.0", Ecosystem: component.Go, IsPublishable: true}

	vcs := newFakeVCS("sdk/go/v0.3.0", "v1.0.0").
		withCommits("sdk/go", "fix: retry").
		withCommits(".", "feat: export")

	versions, err := versioning.ComputeVersions(context.Background(), log.Discard(), component.Packages{nested, root}, vcs, versioning.Policy{})
	require.NoError(t, err)

	assert.Equal(t, "0.3.0", versions[0].OldVersion)
	assert.Equal(t, "0.3.1", versions[0].NewVersion)
	assert.Equal(t, "sdk/go/v0.3.1", versions[0].Tag)
	assert.Equal(t, "sdk/go/v0.3.0", vcs.sinceFor("sdk/go"))

	assert.Equal(t, "1.0.0", versions[1].OldVersion)
	assert.Equal(t, "1.1.0", versions[1].NewVersion)
	assert.Equal(t, "v1.1.0", versions[1].Tag)
}

func TestApplySnapshotVersions(t *testing.T) {
	t.Parallel()

	versions := []versioning.PackageVersion{
		{Name: "core", OldVersion: "1.0.0", NewVersion: "1.1.0", Bump: versioning.BumpMinor, Tag: "core-v1.1.0"},
		{Name: "docs", OldVersion: "1.0.0", NewVersion: "1.0.0", Bump: versioning.BumpNone, Skipped: true},
	}

	snapshot := versioning.ApplySnapshotVersions(versions, "0.0.0-dev.abc1234")

	assert.Equal(t, "0.0.0-dev.abc1234", snapshot[0].NewVersion)
	assert.Equal(t, versioning.BumpSnapshot, snapshot[0].Bump)
	assert.Empty(t, snapshot[0].Tag)
	assert.True(t, snapshot[0].Bumped())
	assert.Equal(t, versions[1], snapshot[1])

	assert.Equal(t, "1.1.0", versions[0].NewVersion, "input must not be modified")
	assert.Equal(t, "core-v1.1.0", versions[0].Tag)
}

func TestUmbrellaVersion(t *testing.T) {
	t.Parallel()

	versions := []versioning.PackageVersion{
		{Name: "a", NewVersion: "1.9.0", Bump: versioning.BumpMinor},
		{Name: "b", NewVersion: "1.10.0", Bump: versioning.BumpMinor},
		{Name: "c", NewVersion: "9.0.0", Bump: versioning.BumpNone, Skipped: true},
	}

	assert.Equal(t, "1.10.0", versioning.UmbrellaVersion(versions))
	assert.Empty(t, versioning.UmbrellaVersion(versions[2:]))
}
