// Package util contains the file, locking and retry helpers shared by the release packages.
package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755
)

// FileExists returns true if the given file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if the path points to a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile returns true if the path points to a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDirectory creates a directory at this path if it does not exist, or errors if the path exists and is a file.
func EnsureDirectory(path string) error {
	if IsFile(path) {
		return errors.New(PathIsNotDirectory{path})
	}

	if !FileExists(path) {
		return errors.New(os.MkdirAll(path, DefaultDirMode))
	}

	return nil
}

// GetPathRelativeTo returns the slash separated relative path you would have to take to get from basePath to path.
func GetPathRelativeTo(path string, basePath string) (string, error) {
	if path == "" {
		path = "."
	}

	if basePath == "" {
		basePath = "."
	}

	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return "", errors.New(err)
	}

	fileAbs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.New(err)
	}

	relPath, err := filepath.Rel(baseAbs, fileAbs)
	if err != nil {
		return "", errors.New(err)
	}

	return filepath.ToSlash(relPath), nil
}

// JoinPath joins a slash separated relative path onto a base directory.
func JoinPath(base, relPath string) string {
	return filepath.Join(base, filepath.FromSlash(relPath))
}

// ReadFileAsString returns the contents of the file at the given path as a string.
func ReadFileAsString(path string) (string, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WithStackTraceAndPrefix(err, "error reading file at path %s", path)
	}

	return string(bytes), nil
}

// WriteFileAtomic writes contents to a temporary file next to path and renames it over path,
// so that readers never observe a partially written file. The mode of an existing file is kept.
func WriteFileAtomic(path string, contents []byte) error {
	mode := os.FileMode(DefaultFileMode)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := EnsureDirectory(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.New(err)
	}

	tmpName := tmp.Name()

	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close() //nolint:errcheck
		return errors.New(err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return errors.New(err)
	}

	if err := tmp.Close(); err != nil {
		return errors.New(err)
	}

	if err := os.Chmod(tmpName, mode); err != nil {
		return errors.New(err)
	}

	return errors.New(os.Rename(tmpName, path))
}

// PathIsNotDirectory is returned when the given path is unexpectedly not a directory.
type PathIsNotDirectory struct {
	path string
}

func (err PathIsNotDirectory) Error() string {
	return fmt.Sprintf("%s is not a directory", err.path)
}
