package registry

import (
	"context"
	"encoding/xml"
	"sort"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const MavenCentralURL = "https://repo1.maven.org/maven2"

var _ backend.Registry = (*MavenCentral)(nil)

// MavenCentral is a Maven 2 layout repository. Package names are `groupId:artifactId`.
type MavenCentral struct {
	*client
}

func NewMavenCentral(l log.Logger, opts ...Option) *MavenCentral {
	return &MavenCentral{client: newClient(l, "maven-central", MavenCentralURL, opts...)}
}

type mavenMetadata struct {
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// coordinates splits `groupId:artifactId` into the repository path and artifact id.
func (maven *MavenCentral) coordinates(name string) (string, string, error) {
	group, artifact, ok := strings.Cut(name, ":")
	if !ok || group == "" || artifact == "" {
		return "", "", errors.Errorf("invalid Maven coordinates %q, expected groupId:artifactId", name)
	}

	return maven.baseURL + "/" + strings.ReplaceAll(group, ".", "/") + "/" + artifact, artifact, nil
}

// DigestAlgorithm is the digest Maven repositories publish next to every file.
func (maven *MavenCentral) DigestAlgorithm() util.HashAlgorithm {
	return util.SHA1
}

func (maven *MavenCentral) CheckPublished(ctx context.Context, name, version string) (bool, error) {
	base, artifact, err := maven.coordinates(name)
	if err != nil {
		return false, err
	}

	return maven.exists(ctx, base+"/"+version+"/"+artifact+"-"+version+".pom")
}

func (maven *MavenCentral) PollAvailable(ctx context.Context, name, version string, opts backend.PollOptions) (bool, error) {
	return Poll(ctx, maven.logger, opts, func(ctx context.Context) (bool, error) {
		return maven.CheckPublished(ctx, name, version)
	})
}

func (maven *MavenCentral) metadata(ctx context.Context, name string) (*mavenMetadata, bool, error) {
	base, _, err := maven.coordinates(name)
	if err != nil {
		return nil, false, err
	}

	body, found, err := maven.get(ctx, base+"/maven-metadata.xml")
	if err != nil || !found {
		return nil, found, err
	}

	var metadata mavenMetadata
	if err := xml.Unmarshal(body, &metadata); err != nil {
		return nil, true, errors.Errorf("decoding maven-metadata.xml of %s: %w", name, err)
	}

	return &metadata, true, nil
}

func (maven *MavenCentral) ProjectExists(ctx context.Context, name string) (bool, error) {
	_, found, err := maven.metadata(ctx, name)
	return found, err
}

func (maven *MavenCentral) LatestVersion(ctx context.Context, name string) (string, error) {
	metadata, found, err := maven.metadata(ctx, name)
	if err != nil {
		return "", err
	}

	if !found {
		return "", errors.New(NotFoundError{Registry: maven.name, Name: name})
	}

	if metadata.Versioning.Release != "" {
		return metadata.Versioning.Release, nil
	}

	if metadata.Versioning.Latest != "" {
		return metadata.Versioning.Latest, nil
	}

	return latestStable(metadata.Versioning.Versions), nil
}

func (maven *MavenCentral) ListVersions(ctx context.Context, name string) ([]string, error) {
	metadata, found, err := maven.metadata(ctx, name)
	if err != nil || !found {
		return nil, err
	}

	return sortVersions(append([]string(nil), metadata.Versioning.Versions...)), nil
}

// VerifyChecksum fetches the `.sha1` file published next to each local artifact.
func (maven *MavenCentral) VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*backend.ChecksumReport, error) {
	base, _, err := maven.coordinates(name)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(local))
	for file := range local {
		files = append(files, file)
	}

	sort.Strings(files)

	remote := map[string]string{}

	for _, file := range files {
		body, found, err := maven.get(ctx, base+"/"+version+"/"+file+".sha1")
		if err != nil {
			return nil, err
		}

		if found {
			// Some publishers append the file name after the digest.
			if fields := strings.Fields(string(body)); len(fields) > 0 {
				remote[file] = strings.ToLower(fields[0])
			}
		}
	}

	matched, mismatched, missing := compareDigests(local, remote)

	return &backend.ChecksumReport{Matched: matched, Mismatched: mismatched, Missing: missing}, nil
}

// YankVersion returns false: Maven Central releases are immutable.
func (maven *MavenCentral) YankVersion(_ context.Context, _, _, _ string, _ bool) (bool, error) {
	return false, nil
}
