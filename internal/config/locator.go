package config

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	// ConfigFileName is the standard configuration file name.
	ConfigFileName = "releasekit.toml"

	// maxTraversalDepth prevents infinite loops during directory traversal.
	maxTraversalDepth = 100
)

// FindConfigFile searches for releasekit.toml with precedence:
//  1. the working directory
//  2. the repository root
//  3. .config at the repository root
//
// It returns the absolute path of the first file found, or an empty string if there is none.
// Only filesystem access failures are errors.
func FindConfigFile(l log.Logger, workDir string) (string, error) {
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", errors.Errorf("resolving working directory: %w", err)
	}

	locations := []string{filepath.Join(workDir, ConfigFileName)}

	if repoRoot := FindRepoRoot(workDir); repoRoot != "" {
		l.Debugf("Found git repository root: %s", repoRoot)

		locations = append(locations,
			filepath.Join(repoRoot, ConfigFileName),
			filepath.Join(repoRoot, ".config", ConfigFileName),
		)
	}

	for _, location := range locations {
		stat, err := os.Stat(location)
		if err == nil {
			if stat.IsDir() {
				l.Debugf("Path exists but is a directory, not a file: %s", location)
				continue
			}

			l.Debugf("Found config file: %s", location)

			return location, nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			l.Warnf("Error accessing %s: %v", location, err)
		}
	}

	l.Debugf("No %s found, using defaults", ConfigFileName)

	return "", nil
}

// FindRepoRoot walks up from startDir to the directory holding .git, a directory for a regular
// repository or a file for a worktree. It returns an empty string outside a repository.
func FindRepoRoot(startDir string) string {
	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for range maxTraversalDepth {
		if _, err := os.Stat(filepath.Join(currentDir, ".git")); err == nil {
			return currentDir
		}

		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return ""
}
