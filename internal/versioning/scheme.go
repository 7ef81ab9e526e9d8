package versioning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	modsemver "golang.org/x/mod/semver"
)

const (
	SchemeSemVer = "semver"
	SchemePEP440 = "pep440"
	SchemeGo     = "go"

	defaultPrereleaseLabel = "rc"
	snapshotBase           = "0.0.0"
	snapshotTimeLayout     = "20060102150405"
)

// BumpOptions tune how a Scheme applies a bump.
type BumpOptions struct {
	// Prerelease turns the bump into a prerelease with this label, e.g. "rc".
	Prerelease string
	// MajorOnZero lets breaking changes bump the major component of 0.x versions.
	// When false a major bump on 0.x is applied as minor.
	MajorOnZero bool
}

// Scheme is a version format with its ordering and increment rules.
type Scheme interface {
	Name() string
	Valid(version string) bool
	// Compare returns -1, 0 or +1. Invalid versions sort below valid ones.
	Compare(a, b string) int
	Bump(current string, bump Bump, opts BumpOptions) (string, error)
	Snapshot(identifier string, ts time.Time) string
}

// SchemeFor returns the version scheme used by the ecosystem.
func SchemeFor(eco component.Ecosystem) Scheme {
	switch eco {
	case component.Python:
		return PEP440{}
	case component.Go:
		return GoScheme{}
	}

	return SemVer{}
}

// ParseScheme returns the scheme with the given name.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case SchemeSemVer:
		return SemVer{}, nil
	case SchemePEP440:
		return PEP440{}, nil
	case SchemeGo:
		return GoScheme{}, nil
	}

	return nil, errors.Errorf("unknown version scheme %q", name)
}

// InvalidVersionError is returned when a version cannot be parsed by its scheme.
type InvalidVersionError struct {
	Scheme  string
	Version string
}

func (err InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid %s version %q", err.Scheme, err.Version)
}

// Hint implements the hinter interface.
func (err InvalidVersionError) Hint() string {
	return "fix the version declared in the package manifest"
}

// SemVer implements Semantic Versioning 2.0.
type SemVer struct{}

func (SemVer) Name() string { return SchemeSemVer }

func (SemVer) Valid(version string) bool {
	_, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
	return err == nil
}

func (SemVer) Compare(a, b string) int {
	return compareSemver(a, b)
}

func (scheme SemVer) Bump(current string, bump Bump, opts BumpOptions) (string, error) {
	return bumpSemver(scheme.Name(), current, bump, opts)
}

func (SemVer) Snapshot(identifier string, _ time.Time) string {
	return semverSnapshot(identifier)
}

// GoScheme is semantic versioning as used by Go module tags. The version lives only in tags.
type GoScheme struct{}

func (GoScheme) Name() string { return SchemeGo }

func (GoScheme) Valid(version string) bool {
	return modsemver.IsValid(canonicalGo(version))
}

func (GoScheme) Compare(a, b string) int {
	a, b = canonicalGo(a), canonicalGo(b)

	switch validA, validB := modsemver.IsValid(a), modsemver.IsValid(b); {
	case !validA && !validB:
		return strings.Compare(a, b)
	case !validA:
		return -1
	case !validB:
		return 1
	}

	return modsemver.Compare(a, b)
}

func (scheme GoScheme) Bump(current string, bump Bump, opts BumpOptions) (string, error) {
	return bumpSemver(scheme.Name(), strings.TrimPrefix(current, "v"), bump, opts)
}

func (GoScheme) Snapshot(identifier string, _ time.Time) string {
	return semverSnapshot(identifier)
}

func canonicalGo(version string) string {
	return "v" + strings.TrimPrefix(version, "v")
}

func compareSemver(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}

	return va.Compare(vb)
}

func bumpSemver(scheme, current string, bump Bump, opts BumpOptions) (string, error) {
	if bump.IsNone() {
		return current, nil
	}

	version, err := semver.NewVersion(current)
	if err != nil {
		return "", errors.New(InvalidVersionError{Scheme: scheme, Version: current})
	}

	label := opts.Prerelease
	if bump == BumpPrerelease {
		bump = BumpPatch

		if label == "" {
			label = defaultPrereleaseLabel
		}
	}

	if bump == BumpMajor && version.Major() == 0 && !opts.MajorOnZero {
		bump = BumpMinor
	}

	if label == "" {
		return incrementSemver(*version, bump).String(), nil
	}

	if curLabel, num, ok := splitPrerelease(version.Prerelease()); ok && curLabel == label {
		next, err := version.SetPrerelease(fmt.Sprintf("%s.%d", label, num+1))
		if err != nil {
			return "", errors.New(err)
		}

		return next.String(), nil
	}

	base := *version
	if version.Prerelease() == "" {
		base = incrementSemver(base, bump)
	}

	base, err = base.SetMetadata("")
	if err != nil {
		return "", errors.New(err)
	}

	next, err := base.SetPrerelease(label + ".1")
	if err != nil {
		return "", errors.New(InvalidVersionError{Scheme: scheme, Version: base.String() + "-" + label})
	}

	return next.String(), nil
}

func incrementSemver(version semver.Version, bump Bump) semver.Version {
	switch bump {
	case BumpMajor:
		return version.IncMajor()
	case BumpMinor:
		return version.IncMinor()
	}

	return version.IncPatch()
}

// splitPrerelease splits "rc.3" into ("rc", 3). A bare "rc" is number 0.
func splitPrerelease(pre string) (string, int, bool) {
	if pre == "" {
		return "", 0, false
	}

	label, numStr, found := strings.Cut(pre, ".")
	if !found {
		return label, 0, true
	}

	num, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, false
	}

	return label, num, true
}

var invalidIdentifierChars = regexp.MustCompile(`[^0-9A-Za-z-]+`)

func semverSnapshot(identifier string) string {
	identifier = strings.Trim(invalidIdentifierChars.ReplaceAllString(identifier, "-"), "-")
	if identifier == "" {
		return snapshotBase + "-dev"
	}

	return snapshotBase + "-dev." + identifier
}
