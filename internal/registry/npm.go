package registry

import (
	"context"
	"net/url"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const NPMURL = "https://registry.npmjs.org"

var _ backend.Registry = (*NPM)(nil)

// NPM is the npm registry. Yanking deprecates the version with the npm CLI.
type NPM struct {
	*client
	runner *shell.Runner
}

func NewNPM(l log.Logger, runner *shell.Runner, opts ...Option) *NPM {
	return &NPM{client: newClient(l, "npm", NPMURL, opts...), runner: runner}
}

type npmPackument struct {
	DistTags map[string]string             `json:"dist-tags"`
	Versions map[string]npmVersionManifest `json:"versions"`
}

type npmVersionManifest struct {
	Version string `json:"version"`
	Dist    struct {
		Shasum  string `json:"shasum"`
		Tarball string `json:"tarball"`
	} `json:"dist"`
}

func (npm *NPM) packumentURL(name string) string {
	return npm.baseURL + "/" + url.PathEscape(name)
}

func (npm *NPM) versionURL(name, version string) string {
	return npm.packumentURL(name) + "/" + url.PathEscape(version)
}

// DigestAlgorithm is the digest of the tarball in the version manifest.
func (npm *NPM) DigestAlgorithm() util.HashAlgorithm {
	return util.SHA1
}

func (npm *NPM) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	return npm.exists(ctx, npm.versionURL(name, version))
}

func (npm *NPM) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, npm.logger, opts, func(ctx context.Context) (bool, error) {
		return npm.CheckPublished(ctx, name, version)
	})
}

func (npm *NPM) ProjectExists(ctx context.Context, name string) (bool, error) {
	return npm.exists(ctx, npm.packumentURL(name))
}

func (npm *NPM) LatestVersion(ctx context.Context, name string) (string, error) {
	var packument npmPackument

	found, err := npm.getJSON(ctx, npm.packumentURL(name), &packument)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: npm.name, Name: name})
	}

	if latest, ok := packument.DistTags["latest"]; ok {
		return latest, nil
	}

	return latestStable(mapKeys(packument.Versions)), nil
}

func (npm *NPM) ListVersions(ctx context.Context, name string) ([]string, error) {
	var packument npmPackument

	found, err := npm.getJSON(ctx, npm.packumentURL(name), &packument)
	if err != nil || !found {
		return nil, err
	}

	return sortVersions(mapKeys(packument.Versions)), nil
}

// VerifyChecksum compares every local tarball with the published shasum. npm publishes exactly one
// tarball per version, so the file name is not part of the comparison.
func (npm *NPM) VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*backend.ChecksumReport, error) {
	var manifest npmVersionManifest

	found, err := npm.getJSON(ctx, npm.versionURL(name, version), &manifest)
	if err != nil {
		return nil, err
	}

	remote := map[string]string{}

	if found {
		for file := range local {
			remote[file] = manifest.Dist.Shasum
		}
	}

	matched, mismatched, missing := compareDigests(local, remote)

	return &backend.ChecksumReport{Matched: matched, Mismatched: mismatched, Missing: missing}, nil
}

// YankVersion deprecates the version, npm's supported way of retracting a release.
func (npm *NPM) YankVersion(ctx context.Context, name, version, reason string, dryRun bool) (bool, error) {
	if reason == "" {
		reason = "this version has been yanked"
	}

	res, err := npm.runner.Run(ctx, shell.Command{
		Name:   "npm",
		Args:   []string{"deprecate", name + "@" + version, reason},
		DryRun: dryRun,
	})
	if err != nil {
		return false, err
	}

	return res.OK(), nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	return keys
}
