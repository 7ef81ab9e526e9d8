package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const fullConfig = `
concurrency = 8
exclude = ["legacy/*"]
umbrella_tag = "release-{version}"
hook_merge = "replace"

[groups]
core = ["core", "core-*"]

[hooks]
before_publish = ["echo root ${name}"]
after_tag = ["notify ${tag}"]

[policy]
major_on_zero = true
prerelease = "rc"
propagate = true
force = "patch"

[policy.tag_format]
python = "py/{name}@{version}"

[policy.cohorts]
plugins = ["plugin-*"]

[ecosystems.python]
required_env = ["UV_PUBLISH_TOKEN"]
registry_url = "https://test.pypi.org/legacy/"
exclude = ["sandbox"]

[ecosystems.python.hooks]
before_publish = ["echo python"]

[ecosystems.kotlin]
enabled = false

[packages.core.hooks]
after_tag = []

[packages.docs]
skip = true

[forge]
kind = "gitlab"
repo = "acme/platform"
token_env = "CI_JOB_TOKEN"

[poll]
interval = "2s"
timeout = "90s"
`

func TestParseFullConfig(t *testing.T) {
	t.Parallel()

	cfg, warnings, err := config.Parse("releasekit.toml", []byte(fullConfig))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "release-{version}", cfg.UmbrellaTagFormat())
	assert.Equal(t, hooks.MergeReplace, cfg.HookMergeMode())
	assert.Equal(t, []string{"core", "core-*"}, cfg.Groups["core"])
	assert.Equal(t, []string{"legacy/*", "sandbox"}, cfg.Excludes(component.Python))
	assert.Equal(t, []string{"legacy/*"}, cfg.Excludes(component.Go))
	assert.Equal(t, []string{"UV_PUBLISH_TOKEN"}, cfg.RequiredEnv(component.Python))
	assert.Equal(t, "https://test.pypi.org/legacy/", cfg.RegistryURL(component.Python))
	assert.True(t, cfg.IsSkipped("docs"))
	assert.False(t, cfg.IsSkipped("core"))

	assert.NotContains(t, cfg.EnabledEcosystems(), component.Kotlin)
	assert.Contains(t, cfg.EnabledEcosystems(), component.Python)

	policy := cfg.VersionPolicy()
	assert.True(t, policy.MajorOnZero)
	assert.True(t, policy.PropagateToDependents)
	assert.Equal(t, "rc", policy.Prerelease)
	assert.Equal(t, versioning.BumpPatch, policy.Force)
	assert.Equal(t, "py/{name}@{version}", policy.TagFormat(component.Python))
	assert.Equal(t, versioning.DefaultTagFormat, policy.TagFormat(component.JS))

	poll := cfg.PollOptions()
	assert.Equal(t, 2*time.Second, poll.Interval)
	assert.Equal(t, 90*time.Second, poll.Timeout)

	assert.Equal(t, "gitlab", cfg.Forge.Kind)
	assert.Equal(t, "acme/platform", cfg.Forge.Repo)

	pythonHooks := cfg.HooksFor(component.Python, "core")
	assert.Equal(t, []string{"echo python"}, pythonHooks[hooks.BeforePublish])
	assert.Empty(t, pythonHooks[hooks.AfterTag])

	goHooks := cfg.HooksFor(component.Go, "api")
	assert.Equal(t, []string{"echo root ${name}"}, goHooks[hooks.BeforePublish])
	assert.Equal(t, []string{"notify ${tag}"}, goHooks[hooks.AfterTag])
}

func TestDefaultsAreMerged(t *testing.T) {
	t.Parallel()

	cfg, _, err := config.Parse("releasekit.toml", []byte(`exclude = ["tmp"]`))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, config.DefaultUmbrellaTag, cfg.UmbrellaTagFormat())
	assert.Equal(t, hooks.MergeConcat, cfg.HookMergeMode())
	assert.Equal(t, "github", cfg.Forge.Kind)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Poll.Timeout)
	assert.Equal(t, component.AllEcosystems, cfg.EnabledEcosystems())
}

func TestUmbrellaTagCanBeDisabled(t *testing.T) {
	t.Parallel()

	cfg, _, err := config.Parse("releasekit.toml", []byte(`umbrella_tag = "none"`))
	require.NoError(t, err)
	assert.Empty(t, cfg.UmbrellaTagFormat())
}

func TestUnknownKeysAreWarnings(t *testing.T) {
	t.Parallel()

	_, warnings, err := config.Parse("releasekit.toml", []byte("future_option = true\n"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "future_option")
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{name: "syntax", body: "concurrency = = 1"},
		{name: "hook merge", body: `hook_merge = "append"`, field: "HookMerge"},
		{name: "concurrency", body: "concurrency = 1000", field: "Concurrency"},
		{name: "forge kind", body: "[forge]\nkind = \"bitbucket\"", field: "Forge.Kind"},
		{name: "tag format", body: "[policy.tag_format]\njs = \"{name}\"", field: "Policy.TagFormat[js]"},
		{name: "unknown ecosystem", body: "[ecosystems.cobol]\nenabled = true", field: "ecosystems.cobol"},
		{name: "unknown hook", body: "[hooks]\nbefore_lunch = [\"eat\"]", field: "hooks.before_lunch"},
		{name: "bad group", body: "[groups]\nbad = [\"[a\"]", field: "groups.bad"},
		{name: "bad cohort", body: "[policy.cohorts]\nsdk = [\"sdk-[\"]", field: "policy.cohorts"},
		{name: "bad force", body: "[policy]\nforce = \"huge\"", field: "Policy.Force"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := config.Parse("releasekit.toml", []byte(tc.body))
			require.Error(t, err)

			var cfgErr *config.ConfigError
			require.ErrorAs(t, err, &cfgErr)

			if tc.field != "" {
				assert.Equal(t, tc.field, cfgErr.Field)
			}

			assert.NotEmpty(t, errors.Hint(err))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("concurrency = 2\n"), 0o644))

	cfg, err := config.Load(log.Discard(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, path, cfg.Path)

	cfg, err = config.Load(log.Discard(), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConcurrency, cfg.Concurrency)

	_, err = config.Load(log.Discard(), filepath.Join(dir, "missing.toml"))

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	nested := filepath.Join(repo, "packages", "core")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))

	found, err := config.FindConfigFile(log.Discard(), nested)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".config"), 0o755))
	dotConfig := filepath.Join(repo, ".config", config.ConfigFileName)
	require.NoError(t, os.WriteFile(dotConfig, nil, 0o644))

	found, err = config.FindConfigFile(log.Discard(), nested)
	require.NoError(t, err)
	assert.Equal(t, dotConfig, found)

	rootConfig := filepath.Join(repo, config.ConfigFileName)
	require.NoError(t, os.WriteFile(rootConfig, nil, 0o644))

	found, err = config.FindConfigFile(log.Discard(), nested)
	require.NoError(t, err)
	assert.Equal(t, rootConfig, found)

	local := filepath.Join(nested, config.ConfigFileName)
	require.NoError(t, os.WriteFile(local, nil, 0o644))

	found, err = config.FindConfigFile(log.Discard(), nested)
	require.NoError(t, err)
	assert.Equal(t, local, found)

	assert.Equal(t, repo, config.FindRepoRoot(nested))
}
