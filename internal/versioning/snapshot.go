package versioning

import (
	"slices"
	"time"
)

// SnapshotVersion builds the snapshot version of a scheme, `0.0.0-dev.<identifier>` for semver
// style schemes and `0.0.0.dev<timestamp>` for PEP 440.
func SnapshotVersion(scheme Scheme, identifier string, ts time.Time) string {
	return scheme.Snapshot(identifier, ts)
}

// ApplySnapshotVersions returns a copy of versions where every bumped package carries the snapshot
// version and no tag. Skipped packages are returned unchanged. The input is not modified.
func ApplySnapshotVersions(versions []PackageVersion, snapshotVersion string) []PackageVersion {
	result := slices.Clone(versions)

	for i := range result {
		if !result[i].Bumped() {
			continue
		}

		result[i].NewVersion = snapshotVersion
		result[i].Bump = BumpSnapshot
		result[i].Tag = ""
	}

	return result
}

// UmbrellaVersion returns the highest new version among the bumped packages, compared with the
// semver scheme. It is empty when nothing is bumped.
func UmbrellaVersion(versions []PackageVersion) string {
	var (
		scheme = SemVer{}
		best   string
	)

	for _, pv := range versions {
		if !pv.Bumped() {
			continue
		}

		if best == "" || scheme.Compare(pv.NewVersion, best) > 0 {
			best = pv.NewVersion
		}
	}

	return best
}
