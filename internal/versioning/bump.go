// Package versioning computes the next version of every package from its commit history.
//
// Commits since a package's last release tag are classified with the conventional commit rules,
// the highest classification wins and the package's version scheme applies it. Cohorts keep a group
// of packages on one shared version, and propagation bumps the dependents of bumped packages.
package versioning

import (
	"fmt"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Bump is the kind of version increment applied to a package.
type Bump string

const (
	BumpNone       Bump = "none"
	BumpPatch      Bump = "patch"
	BumpPrerelease Bump = "prerelease"
	BumpMinor      Bump = "minor"
	BumpMajor      Bump = "major"
	// BumpSnapshot is only produced by a snapshot override and sits outside the ordering.
	BumpSnapshot Bump = "snapshot"
)

var bumpRank = map[Bump]int{
	BumpNone:       0,
	BumpPatch:      1,
	BumpPrerelease: 2,
	BumpMinor:      3,
	BumpMajor:      4,
}

// Rank returns the position of the bump in the order none < patch < prerelease < minor < major.
// Snapshot and unknown values rank below none.
func (bump Bump) Rank() int {
	if rank, ok := bumpRank[bump]; ok {
		return rank
	}

	return -1
}

// Less reports whether bump ranks below other.
func (bump Bump) Less(other Bump) bool {
	return bump.Rank() < other.Rank()
}

// IsNone reports whether the bump leaves the version unchanged.
func (bump Bump) IsNone() bool {
	return bump == "" || bump == BumpNone
}

func (bump Bump) String() string {
	if bump == "" {
		return string(BumpNone)
	}

	return string(bump)
}

// MarshalText implements encoding.TextMarshaler.
func (bump Bump) MarshalText() ([]byte, error) {
	return []byte(bump.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (bump *Bump) UnmarshalText(text []byte) error {
	parsed, err := ParseBump(string(text))
	if err != nil {
		return err
	}

	*bump = parsed

	return nil
}

// ParseBump parses a bump name. The empty string parses as none.
func ParseBump(str string) (Bump, error) {
	bump := Bump(strings.ToLower(strings.TrimSpace(str)))
	if bump == "" {
		return BumpNone, nil
	}

	if _, ok := bumpRank[bump]; ok || bump == BumpSnapshot {
		return bump, nil
	}

	return BumpNone, errors.New(InvalidBumpError(str))
}

// Max returns the highest ranking bump, none when bumps is empty.
func Max(bumps ...Bump) Bump {
	result := BumpNone

	for _, bump := range bumps {
		if result.Less(bump) {
			result = bump
		}
	}

	return result
}

// InvalidBumpError is returned for a bump name that is not recognized.
type InvalidBumpError string

func (err InvalidBumpError) Error() string {
	return fmt.Sprintf("invalid bump %q", string(err))
}

// Hint implements the hinter interface.
func (err InvalidBumpError) Hint() string {
	return "use one of: none, patch, prerelease, minor, major"
}
