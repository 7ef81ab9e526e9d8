package registry

import (
	"context"
	"net/url"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const PyPIURL = "https://pypi.org"

var _ backend.Registry = (*PyPI)(nil)

// PyPI is the Python Package Index, read through its JSON API.
type PyPI struct {
	*client
}

func NewPyPI(l log.Logger, opts ...Option) *PyPI {
	return &PyPI{client: newClient(l, "pypi", PyPIURL, opts...)}
}

type pypiProject struct {
	Releases map[string][]pypiFile `json:"releases"`
	Info     struct {
		Version string `json:"version"`
	} `json:"info"`
	URLs []pypiFile `json:"urls"`
}

type pypiFile struct {
	Digests struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
	Filename string `json:"filename"`
	Yanked   bool   `json:"yanked"`
}

func (pypi *PyPI) projectURL(name string) string {
	return pypi.baseURL + "/pypi/" + url.PathEscape(name) + "/json"
}

func (pypi *PyPI) versionURL(name, version string) string {
	return pypi.baseURL + "/pypi/" + url.PathEscape(name) + "/" + url.PathEscape(version) + "/json"
}

// DigestAlgorithm is the digest PyPI publishes for every file.
func (pypi *PyPI) DigestAlgorithm() util.HashAlgorithm {
	return util.SHA256
}

func (pypi *PyPI) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	return pypi.exists(ctx, pypi.versionURL(name, version))
}

func (pypi *PyPI) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, pypi.logger, opts, func(ctx context.Context) (bool, error) {
		return pypi.CheckPublished(ctx, name, version)
	})
}

func (pypi *PyPI) ProjectExists(ctx context.Context, name string) (bool, error) {
	return pypi.exists(ctx, pypi.projectURL(name))
}

func (pypi *PyPI) LatestVersion(ctx context.Context, name string) (string, error) {
	var project pypiProject

	found, err := pypi.getJSON(ctx, pypi.projectURL(name), &project)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: pypi.name, Name: name})
	}

	return project.Info.Version, nil
}

func (pypi *PyPI) ListVersions(ctx context.Context, name string) ([]string, error) {
	var project pypiProject

	found, err := pypi.getJSON(ctx, pypi.projectURL(name), &project)
	if err != nil || !found {
		return nil, err
	}

	versions := make([]string, 0, len(project.Releases))
	for version := range project.Releases {
		versions = append(versions, version)
	}

	return sortVersions(versions), nil
}

func (pypi *PyPI) VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*backend.ChecksumReport, error) {
	var project pypiProject

	found, err := pypi.getJSON(ctx, pypi.versionURL(name, version), &project)
	if err != nil {
		return nil, err
	}

	remote := map[string]string{}

	if found {
		for _, file := range project.URLs {
			remote[file.Filename] = file.Digests.SHA256
		}
	}

	matched, mismatched, missing := compareDigests(local, remote)

	return &backend.ChecksumReport{Matched: matched, Mismatched: mismatched, Missing: missing}, nil
}

// YankVersion returns false: PyPI only supports yanking through its web interface.
func (pypi *PyPI) YankVersion(_ context.Context, name, version, _ string, _ bool) (bool, error) {
	pypi.logger.Warnf("PyPI does not support yanking through its API, yank %s %s in the web interface", name, version)
	return false, nil
}
