package versioning_test

import (
	"testing"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpOrdering(t *testing.T) {
	t.Parallel()

	ordered := []versioning.Bump{
		versioning.BumpNone,
		versioning.BumpPatch,
		versioning.BumpPrerelease,
		versioning.BumpMinor,
		versioning.BumpMajor,
	}

	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i-1].Less(ordered[i]), "%s < %s", ordered[i-1], ordered[i])
	}

	assert.Equal(t, versioning.BumpMinor, versioning.Max(versioning.BumpPatch, versioning.BumpMinor, versioning.BumpNone))
	assert.Equal(t, versioning.BumpNone, versioning.Max())
}

func TestParseBump(t *testing.T) {
	t.Parallel()

	bump, err := versioning.ParseBump(" Minor ")
	require.NoError(t, err)
	assert.Equal(t, versioning.BumpMinor, bump)

	bump, err = versioning.ParseBump("")
	require.NoError(t, err)
	assert.Equal(t, versioning.BumpNone, bump)

	_, err = versioning.ParseBump("huge")

	var invalidErr versioning.InvalidBumpError
	require.ErrorAs(t, err, &invalidErr)

	var unmarshaled versioning.Bump
	require.NoError(t, unmarshaled.UnmarshalText([]byte("major")))
	assert.Equal(t, versioning.BumpMajor, unmarshaled)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		commit   backend.Commit
		expected versioning.Bump
	}{
		{backend.Commit{Subject: "feat: add streaming"}, versioning.BumpMinor},
		{backend.Commit{Subject: "feat(core)!: drop python 3.8"}, versioning.BumpMajor},
		{backend.Commit{Subject: "fix: handle empty input", Body: "BREAKING CHANGE: input is required"}, versioning.BumpMajor},
		{backend.Commit{Subject: "refactor: tidy", Body: "BREAKING-CHANGE: renamed"}, versioning.BumpMajor},
		{backend.Commit{Subject: "fix(plugins): typo"}, versioning.BumpPatch},
		{backend.Commit{Subject: "docs: readme"}, versioning.BumpPatch},
		{backend.Commit{Subject: "update readme"}, versioning.BumpPatch},
		{backend.Commit{Subject: "chore(release): release 1.2.0"}, versioning.BumpNone},
		{backend.Commit{Subject: "Merge pull request #12 from feature"}, versioning.BumpNone},
	}

	for _, tc := range testCases {
		t.Run(tc.commit.Subject, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, versioning.Classify(tc.commit))
		})
	}
}

func TestClassifyAll(t *testing.T) {
	t.Parallel()

	bump, reason := versioning.ClassifyAll([]backend.Commit{
		{SHA: "1111111111", Subject: "fix: one"},
		{SHA: "2222222222", Subject: "feat: two"},
		{SHA: "3333333333", Subject: "fix: three"},
	})

	assert.Equal(t, versioning.BumpMinor, bump)
	assert.Equal(t, "minor: feat: two (2222222)", reason)

	bump, reason = versioning.ClassifyAll(nil)
	assert.Equal(t, versioning.BumpNone, bump)
	assert.Equal(t, "no qualifying commits", reason)
}
