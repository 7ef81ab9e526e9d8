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

const CratesURL = "https://crates.io/api/v1"

var _ backend.Registry = (*Crates)(nil)

// Crates is crates.io. Yanking runs `cargo yank`.
type Crates struct {
	*client
	runner *shell.Runner
}

func NewCrates(l log.Logger, runner *shell.Runner, opts ...Option) *Crates {
	return &Crates{client: newClient(l, "crates.io", CratesURL, opts...), runner: runner}
}

type crateResponse struct {
	Crate struct {
		MaxVersion       string `json:"max_version"`
		MaxStableVersion string `json:"max_stable_version"`
	} `json:"crate"`
	Versions []crateVersion `json:"versions"`
}

type crateVersionResponse struct {
	Version crateVersion `json:"version"`
}

type crateVersion struct {
	Num      string `json:"num"`
	Checksum string `json:"checksum"`
	Yanked   bool   `json:"yanked"`
}

func (crates *Crates) crateURL(name string) string {
	return crates.baseURL + "/crates/" + url.PathEscape(name)
}

// DigestAlgorithm is the digest of the .crate archive.
func (crates *Crates) DigestAlgorithm() util.HashAlgorithm {
	return util.SHA256
}

func (crates *Crates) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	return crates.exists(ctx, crates.crateURL(name)+"/"+url.PathEscape(version))
}

func (crates *Crates) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, crates.logger, opts, func(ctx context.Context) (bool, error) {
		return crates.CheckPublished(ctx, name, version)
	})
}

func (crates *Crates) ProjectExists(ctx context.Context, name string) (bool, error) {
	return crates.exists(ctx, crates.crateURL(name))
}

func (crates *Crates) LatestVersion(ctx context.Context, name string) (string, error) {
	var resp crateResponse

	found, err := crates.getJSON(ctx, crates.crateURL(name), &resp)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: crates.name, Name: name})
	}

	if resp.Crate.MaxStableVersion != "" {
		return resp.Crate.MaxStableVersion, nil
	}

	return resp.Crate.MaxVersion, nil
}

func (crates *Crates) ListVersions(ctx context.Context, name string) ([]string, error) {
	var resp crateResponse

	found, err := crates.getJSON(ctx, crates.crateURL(name), &resp)
	if err != nil || !found {
		return nil, err
	}

	versions := make([]string, 0, len(resp.Versions))
	for _, version := range resp.Versions {
		versions = append(versions, version.Num)
	}

	return sortVersions(versions), nil
}

func (crates *Crates) VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*backend.ChecksumReport, error) {
	var resp crateVersionResponse

	found, err := crates.getJSON(ctx, crates.crateURL(name)+"/"+url.PathEscape(version), &resp)
	if err != nil {
		return nil, err
	}

	remote := map[string]string{}
	if found {
		remote[name+"-"+version+".crate"] = resp.Version.Checksum
	}

	matched, mismatched, missing := compareDigests(local, remote)

	return &backend.ChecksumReport{Matched: matched, Mismatched: mismatched, Missing: missing}, nil
}

func (crates *Crates) YankVersion(ctx context.Context, name, version, _ string, dryRun bool) (bool, error) {
	res, err := crates.runner.Run(ctx, shell.Command{
		Name:   "cargo",
		Args:   []string{"yank", name, "--version", version},
		DryRun: dryRun,
	})
	if err != nil {
		return false, err
	}

	return res.OK(), nil
}
