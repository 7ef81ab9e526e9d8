package registry

import (
	"context"
	"net/url"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const PubDevURL = "https://pub.dev"

var _ backend.Registry = (*PubDev)(nil)

// PubDev is the Dart package repository.
type PubDev struct {
	*client
}

func NewPubDev(l log.Logger, opts ...Option) *PubDev {
	return &PubDev{client: newClient(l, "pub.dev", PubDevURL, opts...)}
}

type pubPackage struct {
	Latest   pubVersion   `json:"latest"`
	Versions []pubVersion `json:"versions"`
}

type pubVersion struct {
	Version       string `json:"version"`
	ArchiveSHA256 string `json:"archive_sha256"`
}

func (pub *PubDev) packageURL(name string) string {
	return pub.baseURL + "/api/packages/" + url.PathEscape(name)
}

// DigestAlgorithm is the digest of the package archive.
func (pub *PubDev) DigestAlgorithm() util.HashAlgorithm {
	return util.SHA256
}

func (pub *PubDev) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	return pub.exists(ctx, pub.packageURL(name)+"/versions/"+url.PathEscape(version))
}

func (pub *PubDev) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, pub.logger, opts, func(ctx context.Context) (bool, error) {
		return pub.CheckPublished(ctx, name, version)
	})
}

func (pub *PubDev) ProjectExists(ctx context.Context, name string) (bool, error) {
	return pub.exists(ctx, pub.packageURL(name))
}

func (pub *PubDev) LatestVersion(ctx context.Context, name string) (string, error) {
	var pkg pubPackage

	found, err := pub.getJSON(ctx, pub.packageURL(name), &pkg)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: pub.name, Name: name})
	}

	return pkg.Latest.Version, nil
}

func (pub *PubDev) ListVersions(ctx context.Context, name string) ([]string, error) {
	var pkg pubPackage

	found, err := pub.getJSON(ctx, pub.packageURL(name), &pkg)
	if err != nil || !found {
		return nil, err
	}

	versions := make([]string, 0, len(pkg.Versions))
	for _, version := range pkg.Versions {
		versions = append(versions, version.Version)
	}

	return sortVersions(versions), nil
}

func (pub *PubDev) VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*backend.ChecksumReport, error) {
	var resp pubVersion

	found, err := pub.getJSON(ctx, pub.packageURL(name)+"/versions/"+url.PathEscape(version), &resp)
	if err != nil {
		return nil, err
	}

	remote := map[string]string{}
	if found {
		remote[name+"-"+version+".tar.gz"] = resp.ArchiveSHA256
	}

	matched, mismatched, missing := compareDigests(local, remote)

	return &backend.ChecksumReport{Matched: matched, Mismatched: mismatched, Missing: missing}, nil
}

// YankVersion returns false: pub.dev only supports retracting versions through its web interface.
func (pub *PubDev) YankVersion(_ context.Context, _, _, _ string, _ bool) (bool, error) {
	return false, nil
}
