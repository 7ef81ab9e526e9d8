package hooks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	root := hooks.Hooks{
		hooks.BeforePublish: {"echo root"},
		hooks.AfterTag:      {"notify ${tag}"},
	}
	workspace := hooks.Hooks{
		hooks.BeforePublish: {"echo workspace"},
	}
	pkg := hooks.Hooks{
		hooks.BeforePublish: {"echo package"},
		hooks.AfterTag:      {},
	}

	concat := hooks.Merge(hooks.MergeConcat, root, workspace, pkg)
	assert.Equal(t, []string{"echo root", "echo workspace", "echo package"}, concat[hooks.BeforePublish])
	assert.Equal(t, []string{"notify ${tag}"}, concat[hooks.AfterTag])

	replace := hooks.Merge(hooks.MergeReplace, root, workspace, pkg)
	assert.Equal(t, []string{"echo package"}, replace[hooks.BeforePublish])
	assert.Empty(t, replace[hooks.AfterTag])

	onlyRoot := hooks.Merge(hooks.MergeReplace, root, hooks.Hooks{}, nil)
	assert.Equal(t, []string{"echo root"}, onlyRoot[hooks.BeforePublish])
}

func TestMergeDoesNotAliasTiers(t *testing.T) {
	t.Parallel()

	root := hooks.Hooks{hooks.BeforePrepare: make([]string, 1, 4)}
	root[hooks.BeforePrepare][0] = "a"

	hooks.Merge(hooks.MergeConcat, root, hooks.Hooks{hooks.BeforePrepare: {"b"}})

	assert.Equal(t, []string{"a"}, root[hooks.BeforePrepare])
}

func TestExpand(t *testing.T) {
	t.Parallel()

	vars := hooks.Vars{Version: "1.2.0", Name: "core", Tag: "core-v1.2.0"}

	assert.Equal(t, "echo core 1.2.0 core-v1.2.0", hooks.Expand("echo ${name} ${version} ${tag}", vars))
	assert.Equal(t, "echo $HOME ${other}", hooks.Expand("echo $HOME ${other}", vars))
}

func TestParse(t *testing.T) {
	t.Parallel()

	event, ok := hooks.ParseEvent("after_publish")
	assert.True(t, ok)
	assert.Equal(t, hooks.AfterPublish, event)

	_, ok = hooks.ParseEvent("after_lunch")
	assert.False(t, ok)

	mode, err := hooks.ParseMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, hooks.MergeConcat, mode)

	mode, err = hooks.ParseMergeMode("Replace")
	require.NoError(t, err)
	assert.Equal(t, hooks.MergeReplace, mode)

	_, err = hooks.ParseMergeMode("append")
	require.Error(t, err)
}

func TestDryRunDoesNotExecute(t *testing.T) {
	t.Parallel()

	executor := hooks.NewExecutor(log.Discard(), shell.NewRunner(log.Discard()))

	results, err := executor.Run(t.Context(), hooks.AfterTag, []string{
		"git push origin '${tag}'",
		"",
		"definitely-not-a-real-binary --flag",
	}, hooks.Vars{Tag: "core-v1.0.0"}, t.TempDir(), true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].IsDryRun())
	assert.Equal(t, []string{"git", "push", "origin", "core-v1.0.0"}, results[0].Command)
	assert.Nil(t, hooks.FirstFailure(results))
}

func TestInvalidCommand(t *testing.T) {
	t.Parallel()

	executor := hooks.NewExecutor(log.Discard(), shell.NewRunner(log.Discard()))

	_, err := executor.Run(t.Context(), hooks.BeforePublish, []string{"echo 'unterminated"}, hooks.Vars{}, "", true)

	var invalid hooks.InvalidCommandError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, hooks.BeforePublish, invalid.Event)
}
