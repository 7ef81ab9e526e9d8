// Package manifest persists the version decisions of one release run so that later CI steps
// (prepare, publish, tag) act on exactly what the plan step computed.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/versioning"
	"github.com/gruntwork-io/releasekit/util"
)

// DefaultFileName is the manifest file written by the plan step.
const DefaultFileName = "release-manifest.json"

// ReleaseManifest is the versioning snapshot of one release run.
type ReleaseManifest struct {
	CreatedAt   time.Time                   `json:"created_at"`
	GitSHA      string                      `json:"git_sha"`
	UmbrellaTag string                      `json:"umbrella_tag"`
	RunID       string                      `json:"run_id,omitempty"`
	Packages    []versioning.PackageVersion `json:"packages"`
}

// manifestFile fixes the key order of the persisted form.
type manifestFile struct {
	GitSHA      *string                     `json:"git_sha"`
	UmbrellaTag string                      `json:"umbrella_tag"`
	RunID       string                      `json:"run_id,omitempty"`
	Packages    []versioning.PackageVersion `json:"packages"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// New returns a manifest created now.
func New(gitSHA, umbrellaTag string, versions []versioning.PackageVersion) *ReleaseManifest {
	if versions == nil {
		versions = []versioning.PackageVersion{}
	}

	return &ReleaseManifest{
		GitSHA:      gitSHA,
		UmbrellaTag: umbrellaTag,
		Packages:    versions,
		CreatedAt:   time.Now().UTC(),
	}
}

// Bumped returns the packages that get a new version, in manifest order.
func (manifest *ReleaseManifest) Bumped() []versioning.PackageVersion {
	var bumped []versioning.PackageVersion

	for _, pv := range manifest.Packages {
		if pv.Bumped() {
			bumped = append(bumped, pv)
		}
	}

	return bumped
}

// Get returns the version decision of the named package.
func (manifest *ReleaseManifest) Get(name string) (versioning.PackageVersion, bool) {
	for _, pv := range manifest.Packages {
		if pv.Name == name {
			return pv, true
		}
	}

	return versioning.PackageVersion{}, false
}

// Marshal returns the persisted JSON form.
func (manifest *ReleaseManifest) Marshal() ([]byte, error) {
	packages := manifest.Packages
	if packages == nil {
		packages = []versioning.PackageVersion{}
	}

	data, err := json.MarshalIndent(manifestFile{
		GitSHA:      &manifest.GitSHA,
		UmbrellaTag: manifest.UmbrellaTag,
		RunID:       manifest.RunID,
		Packages:    packages,
		CreatedAt:   manifest.CreatedAt,
	}, "", "  ")
	if err != nil {
		return nil, errors.New(err)
	}

	return append(data, '\n'), nil
}

// Save writes the manifest atomically while holding a lock file next to it.
func (manifest *ReleaseManifest) Save(path string) error {
	data, err := manifest.Marshal()
	if err != nil {
		return err
	}

	lockfile := util.NewLockfile(path + ".lock")
	if err := lockfile.TryLock(); err != nil {
		return err
	}

	defer func() {
		lockfile.Unlock() //nolint:errcheck
		os.Remove(lockfile.Path()) //nolint:errcheck
	}()

	return util.WriteFileAtomic(path, data)
}

// Parse decodes a persisted manifest. A missing or empty git_sha is a FormatError.
func Parse(source string, data []byte) (*ReleaseManifest, error) {
	var file manifestFile

	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.New(FormatError{Path: source, Reason: err.Error()})
	}

	if file.GitSHA == nil || *file.GitSHA == "" {
		return nil, errors.New(FormatError{Path: source, Reason: "missing required field git_sha"})
	}

	for i, pv := range file.Packages {
		if pv.Name == "" {
			return nil, errors.New(FormatError{Path: source, Reason: fmt.Sprintf("package #%d has no name", i)})
		}
	}

	if file.Packages == nil {
		file.Packages = []versioning.PackageVersion{}
	}

	return &ReleaseManifest{
		GitSHA:      *file.GitSHA,
		UmbrellaTag: file.UmbrellaTag,
		RunID:       file.RunID,
		Packages:    file.Packages,
		CreatedAt:   file.CreatedAt,
	}, nil
}

// Load reads a manifest written by Save.
func Load(path string) (*ReleaseManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "reading release manifest")
	}

	return Parse(path, data)
}

// FormatError is returned for a malformed manifest.
type FormatError struct {
	Path   string
	Reason string
}

func (err FormatError) Error() string {
	return fmt.Sprintf("malformed release manifest %s: %s", err.Path, err.Reason)
}

// Hint implements the hinter interface.
func (err FormatError) Hint() string {
	return "regenerate the manifest with `releasekit plan`"
}
