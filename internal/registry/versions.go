package registry

import (
	"sort"

	"github.com/hashicorp/go-version"
)

// sortVersions sorts ascending by version precedence. Strings go-version cannot parse sort first,
// in lexical order.
func sortVersions(versions []string) []string {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, errI := version.NewVersion(versions[i])
		vj, errJ := version.NewVersion(versions[j])

		switch {
		case errI != nil && errJ != nil:
			return versions[i] < versions[j]
		case errI != nil:
			return true
		case errJ != nil:
			return false
		}

		return vi.LessThan(vj)
	})

	return versions
}

// latestStable returns the highest version without a prerelease, or the highest version when all
// are prereleases.
func latestStable(versions []string) string {
	sorted := sortVersions(append([]string(nil), versions...))

	for i := len(sorted) - 1; i >= 0; i-- {
		if v, err := version.NewVersion(sorted[i]); err == nil && v.Prerelease() == "" {
			return sorted[i]
		}
	}

	if len(sorted) == 0 {
		return ""
	}

	return sorted[len(sorted)-1]
}

func compareDigests(local map[string]string, remote map[string]string) (matched []string, mismatched map[string]string, missing []string) {
	mismatched = map[string]string{}

	for file, digest := range local {
		remoteDigest, ok := remote[file]

		switch {
		case !ok:
			missing = append(missing, file)
		case remoteDigest == digest:
			matched = append(matched, file)
		default:
			mismatched[file] = remoteDigest
		}
	}

	sort.Strings(matched)
	sort.Strings(missing)

	return matched, mismatched, missing
}
