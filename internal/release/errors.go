package release

import "fmt"

// UnknownPackageError is returned when a manifest names a package the workspace no longer has.
type UnknownPackageError struct {
	Name string
}

func (err UnknownPackageError) Error() string {
	return fmt.Sprintf("package %q from the manifest was not found in the workspace", err.Name)
}

// Hint implements the hinter interface.
func (err UnknownPackageError) Hint() string {
	return "regenerate the manifest with `releasekit plan`"
}

const shortSHALength = 12

// short abbreviates a commit SHA for snapshot identifiers.
func short(sha string) string {
	if len(sha) > shortSHALength {
		return sha[:shortSHALength]
	}

	return sha
}
