package versioning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

var pep440Pattern = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?` +
	`(?:[-_.]?(a|b|c|rc|alpha|beta|pre|preview)[-_.]?(\d*))?` +
	`(?:[-_.]?(post|rev|r)[-_.]?(\d*))?` +
	`(?:[-_.]?(dev)[-_.]?(\d*))?$`)

var pep440PreLabels = map[string]string{
	"a":       "a",
	"alpha":   "a",
	"b":       "b",
	"beta":    "b",
	"c":       "rc",
	"rc":      "rc",
	"pre":     "rc",
	"preview": "rc",
}

var pep440PreRank = map[string]int{"a": 0, "b": 1, "rc": 2}

type pep440Version struct {
	pre     string
	release [3]int
	preNum  int
	post    int
	dev     int
}

func parsePEP440(str string) (pep440Version, bool) {
	match := pep440Pattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(str)))
	if match == nil {
		return pep440Version{}, false
	}

	version := pep440Version{post: -1, dev: -1}

	for i := range version.release {
		version.release[i] = atoiOr(match[i+1], 0)
	}

	if match[4] != "" {
		version.pre = pep440PreLabels[match[4]]
		version.preNum = atoiOr(match[5], 0)
	}

	if match[6] != "" {
		version.post = atoiOr(match[7], 0)
	}

	if match[8] != "" {
		version.dev = atoiOr(match[9], 0)
	}

	return version, true
}

func atoiOr(str string, fallback int) int {
	num, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}

	return num
}

func (version pep440Version) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d.%d.%d", version.release[0], version.release[1], version.release[2])

	if version.pre != "" {
		fmt.Fprintf(&sb, "%s%d", version.pre, version.preNum)
	}

	if version.post >= 0 {
		fmt.Fprintf(&sb, ".post%d", version.post)
	}

	if version.dev >= 0 {
		fmt.Fprintf(&sb, ".dev%d", version.dev)
	}

	return sb.String()
}

// phase orders a developmental release before prereleases, then the final release.
func (version pep440Version) phase() (int, int, int) {
	switch {
	case version.pre != "":
		return 1, pep440PreRank[version.pre], version.preNum
	case version.dev >= 0 && version.post < 0:
		return 0, 0, 0
	}

	return 2, 0, 0
}

func (version pep440Version) compare(other pep440Version) int {
	for i := range version.release {
		if c := cmpInt(version.release[i], other.release[i]); c != 0 {
			return c
		}
	}

	p1, r1, n1 := version.phase()
	p2, r2, n2 := other.phase()

	for _, c := range []int{cmpInt(p1, p2), cmpInt(r1, r2), cmpInt(n1, n2), cmpInt(version.post, other.post)} {
		if c != 0 {
			return c
		}
	}

	switch {
	case version.dev == other.dev:
		return 0
	case version.dev < 0:
		return 1
	case other.dev < 0:
		return -1
	}

	return cmpInt(version.dev, other.dev)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

// PEP440 implements the Python version scheme.
type PEP440 struct{}

func (PEP440) Name() string { return SchemePEP440 }

func (PEP440) Valid(version string) bool {
	_, ok := parsePEP440(version)
	return ok
}

func (PEP440) Compare(a, b string) int {
	va, okA := parsePEP440(a)
	vb, okB := parsePEP440(b)

	switch {
	case !okA && !okB:
		return strings.Compare(a, b)
	case !okA:
		return -1
	case !okB:
		return 1
	}

	return va.compare(vb)
}

func (scheme PEP440) Bump(current string, bump Bump, opts BumpOptions) (string, error) {
	if bump.IsNone() {
		return current, nil
	}

	version, ok := parsePEP440(current)
	if !ok {
		return "", errors.New(InvalidVersionError{Scheme: scheme.Name(), Version: current})
	}

	label := opts.Prerelease
	if bump == BumpPrerelease {
		bump = BumpPatch

		if label == "" {
			label = defaultPrereleaseLabel
		}
	}

	if bump == BumpMajor && version.release[0] == 0 && !opts.MajorOnZero {
		bump = BumpMinor
	}

	wasPre := version.pre != ""
	version.post, version.dev = -1, -1

	if label != "" {
		label = pep440PreLabels[strings.ToLower(label)]
		if label == "" {
			label = defaultPrereleaseLabel
		}

		if version.pre == label {
			version.preNum++
			return version.String(), nil
		}

		if !wasPre {
			version.release = incrementRelease(version.release, bump)
		}

		version.pre, version.preNum = label, 1

		return version.String(), nil
	}

	version.pre, version.preNum = "", 0

	if wasPre && bump == BumpPatch {
		return version.String(), nil
	}

	version.release = incrementRelease(version.release, bump)

	return version.String(), nil
}

func (PEP440) Snapshot(_ string, ts time.Time) string {
	return snapshotBase + ".dev" + ts.UTC().Format(snapshotTimeLayout)
}

func incrementRelease(release [3]int, bump Bump) [3]int {
	switch bump {
	case BumpMajor:
		return [3]int{release[0] + 1, 0, 0}
	case BumpMinor:
		return [3]int{release[0], release[1] + 1, 0}
	}

	return [3]int{release[0], release[1], release[2] + 1}
}
