package graph

import (
	"fmt"
	"strings"
)

// DependencyCycleError is returned when the internal dependencies form a cycle.
// It holds the full cycle path, with the first package repeated at the end.
type DependencyCycleError []string

func (err DependencyCycleError) Error() string {
	return "Found a dependency cycle between packages: " + strings.Join([]string(err), " -> ")
}

// Hint implements the hinter interface.
func (err DependencyCycleError) Hint() string {
	return "break the cycle by removing one of the internal dependencies along the path"
}

// SelfDependencyError is returned when packages list themselves as internal dependencies.
type SelfDependencyError []string

func (err SelfDependencyError) Error() string {
	return "Packages depend on themselves: " + strings.Join([]string(err), ", ")
}

// Hint implements the hinter interface.
func (err SelfDependencyError) Hint() string {
	return "remove the package from its own dependency list"
}

// DuplicatePackageError is returned when two discovered packages share a name.
type DuplicatePackageError struct {
	Name  string
	Paths []string
}

func (err DuplicatePackageError) Error() string {
	return fmt.Sprintf("Package name %q is declared more than once: %s", err.Name, strings.Join(err.Paths, ", "))
}

// Hint implements the hinter interface.
func (err DuplicatePackageError) Hint() string {
	return "rename one of the packages or exclude it from discovery"
}
