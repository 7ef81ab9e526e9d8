//go:build linux || darwin

package hooks_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	executor := hooks.NewExecutor(log.Discard(), shell.NewRunner(log.Discard()))

	results, err := executor.Run(t.Context(), hooks.BeforePublish, []string{
		"sh -c 'echo ${name}-${version} > out.txt'",
		"sh -c 'exit 3'",
		"touch never.txt",
	}, hooks.Vars{Name: "core", Version: "2.0.0"}, dir, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	failure := hooks.FirstFailure(results)
	require.NotNil(t, failure)
	assert.Equal(t, 3, failure.ReturnCode)

	contents, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "core-2.0.0\n", string(contents))
	assert.NoFileExists(t, filepath.Join(dir, "never.txt"))
}

func TestHookEnvironment(t *testing.T) {
	t.Parallel()

	executor := hooks.NewExecutor(log.Discard(), shell.NewRunner(log.Discard()))

	results, err := executor.Run(t.Context(), hooks.AfterTag, []string{
		"sh -c 'echo $RELEASEKIT_HOOK $RELEASEKIT_TAG'",
	}, hooks.Vars{Tag: "v1.0.0"}, t.TempDir(), false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "after_tag v1.0.0\n", results[0].Stdout)
}

func TestMissingExecutableIsToolingError(t *testing.T) {
	t.Parallel()

	executor := hooks.NewExecutor(log.Discard(), shell.NewRunner(log.Discard()))

	_, err := executor.Run(t.Context(), hooks.AfterTag, []string{"definitely-not-a-real-binary"}, hooks.Vars{}, t.TempDir(), false)

	var toolingErr *shell.ToolingError
	require.ErrorAs(t, err, &toolingErr)
}
