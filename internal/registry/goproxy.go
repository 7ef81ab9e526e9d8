package registry

import (
	"context"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"golang.org/x/mod/module"
)

const GoProxyURL = "https://proxy.golang.org"

var _ backend.Registry = (*GoProxy)(nil)

// GoProxy is the Go module proxy. Versions are passed without the leading "v".
type GoProxy struct {
	*client
}

func NewGoProxy(l log.Logger, opts ...Option) *GoProxy {
	return &GoProxy{client: newClient(l, "goproxy", GoProxyURL, opts...)}
}

func (proxy *GoProxy) moduleURL(name string) (string, error) {
	escaped, err := module.EscapePath(name)
	if err != nil {
		return "", errors.Errorf("invalid module path %q: %w", name, err)
	}

	return proxy.baseURL + "/" + escaped, nil
}

func (proxy *GoProxy) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	base, err := proxy.moduleURL(name)
	if err != nil {
		return false, err
	}

	escaped, err := module.EscapeVersion("v" + strings.TrimPrefix(version, "v"))
	if err != nil {
		return false, errors.New(err)
	}

	return proxy.exists(ctx, base+"/@v/"+escaped+".info")
}

func (proxy *GoProxy) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, proxy.logger, opts, func(ctx context.Context) (bool, error) {
		return proxy.CheckPublished(ctx, name, version)
	})
}

func (proxy *GoProxy) ProjectExists(ctx context.Context, name string) (bool, error) {
	base, err := proxy.moduleURL(name)
	if err != nil {
		return false, err
	}

	return proxy.exists(ctx, base+"/@v/list")
}

func (proxy *GoProxy) LatestVersion(ctx context.Context, name string) (string, error) {
	base, err := proxy.moduleURL(name)
	if err != nil {
		return "", err
	}

	var info struct {
		Version string `json:"Version"`
	}

	found, err := proxy.getJSON(ctx, base+"/@latest", &info)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: proxy.name, Name: name})
	}

	return strings.TrimPrefix(info.Version, "v"), nil
}

func (proxy *GoProxy) ListVersions(ctx context.Context, name string) ([]string, error) {
	base, err := proxy.moduleURL(name)
	if err != nil {
		return nil, err
	}

	body, found, err := proxy.get(ctx, base+"/@v/list")
	if err != nil || !found {
		return nil, err
	}

	var versions []string

	for line := range strings.SplitSeq(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			versions = append(versions, strings.TrimPrefix(line, "v"))
		}
	}

	return sortVersions(versions), nil
}

// VerifyChecksum is unsupported: module integrity is verified by the checksum database.
func (proxy *GoProxy) VerifyChecksum(_ context.Context, _, _ string, _ map[string]string) (*backend.ChecksumReport, error) {
	return &backend.ChecksumReport{Unsupported: true}, nil
}

// YankVersion returns false: Go versions are retracted with a `retract` directive in a new release.
func (proxy *GoProxy) YankVersion(_ context.Context, _, _, _ string, _ bool) (bool, error) {
	return false, nil
}
