package versioning_test

import (
	"testing"
	"time"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, versioning.SchemePEP440, versioning.SchemeFor(component.Python).Name())
	assert.Equal(t, versioning.SchemeGo, versioning.SchemeFor(component.Go).Name())
	assert.Equal(t, versioning.SchemeSemVer, versioning.SchemeFor(component.Rust).Name())
	assert.Equal(t, versioning.SchemeSemVer, versioning.SchemeFor(component.Kotlin).Name())
}

func TestSemVerBump(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		current  string
		bump     versioning.Bump
		opts     versioning.BumpOptions
		expected string
	}{
		{"1.2.3", versioning.BumpPatch, versioning.BumpOptions{}, "1.2.4"},
		{"1.2.3", versioning.BumpMinor, versioning.BumpOptions{}, "1.3.0"},
		{"1.2.3", versioning.BumpMajor, versioning.BumpOptions{}, "2.0.0"},
		{"1.2.3", versioning.BumpNone, versioning.BumpOptions{}, "1.2.3"},
		{"0.4.1", versioning.BumpMajor, versioning.BumpOptions{}, "0.5.0"},
		{"0.4.1", versioning.BumpMajor, versioning.BumpOptions{MajorOnZero: true}, "1.0.0"},
		{"1.2.3", versioning.BumpMinor, versioning.BumpOptions{Prerelease: "rc"}, "1.3.0-rc.1"},
		{"1.3.0-rc.1", versioning.BumpPatch, versioning.BumpOptions{Prerelease: "rc"}, "1.3.0-rc.2"},
		{"1.3.0-beta.4", versioning.BumpMinor, versioning.BumpOptions{Prerelease: "rc"}, "1.3.0-rc.1"},
		{"1.3.0-rc.2", versioning.BumpPatch, versioning.BumpOptions{}, "1.3.0"},
		{"1.2.3", versioning.BumpPrerelease, versioning.BumpOptions{}, "1.2.4-rc.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.current+"+"+tc.bump.String(), func(t *testing.T) {
			t.Parallel()

			actual, err := versioning.SemVer{}.Bump(tc.current, tc.bump, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestSemVerBumpInvalid(t *testing.T) {
	t.Parallel()

	_, err := versioning.SemVer{}.Bump("not-a-version", versioning.BumpPatch, versioning.BumpOptions{})

	var invalidErr versioning.InvalidVersionError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "not-a-version", invalidErr.Version)
}

func TestPEP440Bump(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		current  string
		bump     versioning.Bump
		opts     versioning.BumpOptions
		expected string
	}{
		{"1.2.3", versioning.BumpPatch, versioning.BumpOptions{}, "1.2.4"},
		{"1.2", versioning.BumpMinor, versioning.BumpOptions{}, "1.3.0"},
		{"1.2.3.post2", versioning.BumpPatch, versioning.BumpOptions{}, "1.2.4"},
		{"0.9.0", versioning.BumpMajor, versioning.BumpOptions{}, "0.10.0"},
		{"1.2.3", versioning.BumpMinor, versioning.BumpOptions{Prerelease: "rc"}, "1.3.0rc1"},
		{"1.3.0rc1", versioning.BumpPatch, versioning.BumpOptions{Prerelease: "rc"}, "1.3.0rc2"},
		{"1.3.0rc2", versioning.BumpPatch, versioning.BumpOptions{}, "1.3.0"},
		{"1.3.0a1", versioning.BumpPatch, versioning.BumpOptions{Prerelease: "beta"}, "1.3.0b1"},
	}

	for _, tc := range testCases {
		t.Run(tc.current+"+"+tc.bump.String(), func(t *testing.T) {
			t.Parallel()

			actual, err := versioning.PEP440{}.Bump(tc.current, tc.bump, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestPEP440Compare(t *testing.T) {
	t.Parallel()

	ordered := []string{"1.0.0.dev1", "1.0.0a1", "1.0.0b2", "1.0.0rc1", "1.0.0", "1.0.0.post1", "1.0.1"}
	scheme := versioning.PEP440{}

	for i := 1; i < len(ordered); i++ {
		assert.Equal(t, -1, scheme.Compare(ordered[i-1], ordered[i]), "%s < %s", ordered[i-1], ordered[i])
		assert.Equal(t, 1, scheme.Compare(ordered[i], ordered[i-1]))
	}

	assert.Equal(t, 0, scheme.Compare("1.0", "1.0.0"))
	assert.False(t, scheme.Valid("one.two"))
}

func TestGoSchemeCompare(t *testing.T) {
	t.Parallel()

	scheme := versioning.GoScheme{}

	assert.True(t, scheme.Valid("1.4.0"))
	assert.True(t, scheme.Valid("v1.4.0"))
	assert.Equal(t, 1, scheme.Compare("1.10.0", "1.9.0"))
	assert.Equal(t, -1, scheme.Compare("garbage", "0.0.1"))
}

func TestSnapshotVersion(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, "0.0.0-dev.abc1234", versioning.SnapshotVersion(versioning.SemVer{}, "abc1234", ts))
	assert.Equal(t, "0.0.0-dev.pr-42", versioning.SnapshotVersion(versioning.GoScheme{}, "pr/42", ts))
	assert.Equal(t, "0.0.0.dev20260304050607", versioning.SnapshotVersion(versioning.PEP440{}, "abc1234", ts))
	assert.True(t, versioning.PEP440{}.Valid(versioning.SnapshotVersion(versioning.PEP440{}, "x", ts)))
	assert.True(t, versioning.SemVer{}.Valid(versioning.SnapshotVersion(versioning.SemVer{}, "abc1234", ts)))
}
