package util_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "manifest.json")

	require.NoError(t, util.WriteFileAtomic(path, []byte("one")))
	require.NoError(t, util.WriteFileAtomic(path, []byte("two")))

	contents, err := util.ReadFileAsString(path)
	require.NoError(t, err)
	assert.Equal(t, "two", contents)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestGetPathRelativeTo(t *testing.T) {
	t.Parallel()

	rel, err := util.GetPathRelativeTo("/repo/packages/core", "/repo")
	require.NoError(t, err)
	assert.Equal(t, "packages/core", rel)

	rel, err = util.GetPathRelativeTo("/repo", "/repo")
	require.NoError(t, err)
	assert.Equal(t, ".", rel)
}

func TestLockfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".releasekit.lock")

	first := util.NewLockfile(path)
	require.NoError(t, first.TryLock())

	second := util.NewLockfile(path)

	var heldErr util.LockHeldError
	require.ErrorAs(t, second.TryLock(), &heldErr)
	assert.Equal(t, path, heldErr.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorAs(t, second.Lock(ctx, 10*time.Millisecond), &heldErr)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestDoWithRetry(t *testing.T) {
	t.Parallel()

	var calls int

	err := util.DoWithRetry(context.Background(), "flaky", 3, time.Millisecond, log.Discard(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = util.DoWithRetry(context.Background(), "fatal", 3, time.Millisecond, log.Discard(), func(context.Context) error {
		calls++
		return util.FatalError{Underlying: errors.New("not found")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	err = util.DoWithRetry(context.Background(), "always", 2, time.Millisecond, log.Discard(), func(context.Context) error {
		return errors.New("boom")
	})

	var maxErr util.MaxRetriesExceeded
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.MaxRetries)
}

func TestDirDigests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0o600))

	digests, err := util.DirDigests(dir, util.SHA256)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"}, digests)

	sha1Digest, err := util.FileDigest(filepath.Join(dir, "a.txt"), util.SHA1)
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", sha1Digest)

	missing, err := util.DirDigests(filepath.Join(dir, "missing"), util.SHA256)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
