package component_test

import (
	"testing"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		eco      component.Ecosystem
		name     string
		expected string
	}{
		{component.Python, "My_Package.Core", "my-package-core"},
		{component.Python, "  genkit--plugin  ", "genkit-plugin"},
		{component.JS, "@scope/Pkg", "@scope/Pkg"},
		{component.Rust, "serde_json", "serde_json"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, component.NormalizeName(tc.eco, tc.name))
	}
}

func TestResolveInternalDeps(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{
		{Name: "core", Ecosystem: component.Python, AllDeps: []string{"httpx", "pydantic"}},
		{Name: "plugin-a", Ecosystem: component.Python, AllDeps: []string{"Core", "httpx"}},
		{Name: "plugin-b", Ecosystem: component.Python, AllDeps: []string{"core", "plugin_a", "core"}, InternalDeps: []string{"ghost"}},
	}

	component.ResolveInternalDeps(pkgs)

	assert.Empty(t, pkgs[0].InternalDeps)
	assert.Equal(t, []string{"httpx", "pydantic"}, pkgs[0].ExternalDeps)
	assert.Equal(t, []string{"core"}, pkgs[1].InternalDeps)
	assert.Equal(t, []string{"httpx"}, pkgs[1].ExternalDeps)
	assert.Equal(t, []string{"core", "ghost", "plugin-a"}, pkgs[2].InternalDeps)
}

func TestPackagesHelpers(t *testing.T) {
	t.Parallel()

	pkgs := component.Packages{
		{Name: "b", Ecosystem: component.Go, IsPublishable: true},
		{Name: "a", Ecosystem: component.JS},
		{Name: "c", Ecosystem: component.Go, IsPublishable: true},
	}

	assert.Equal(t, []string{"a", "b", "c"}, pkgs.Sort().Names())
	assert.Equal(t, []string{"b", "c"}, pkgs.Publishable().Names())
	assert.Equal(t, []string{"b", "c"}, pkgs.ByEcosystem(component.Go).Names())
	assert.Nil(t, pkgs.Find("missing"))
	assert.Equal(t, "a", pkgs.Find("a").Name)

	eco, ok := component.ParseEcosystem(" Rust ")
	assert.True(t, ok)
	assert.Equal(t, component.Rust, eco)
}
