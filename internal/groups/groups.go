// Package groups selects the packages of a named release group.
package groups

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Filter returns the packages matching any pattern of the named group. An empty group name selects
// every package. Patterns are globs over the package name.
func Filter(pkgs component.Packages, groups map[string][]string, groupName string) (component.Packages, error) {
	if groupName == "" {
		return pkgs, nil
	}

	patterns, ok := groups[groupName]
	if !ok {
		return nil, errors.New(UnknownGroupError{Name: groupName, Known: Names(groups)})
	}

	globs, err := Compile(groupName, patterns)
	if err != nil {
		return nil, err
	}

	var selected component.Packages

	for _, pkg := range pkgs {
		if slices.ContainsFunc(globs, func(g glob.Glob) bool { return g.Match(pkg.Name) }) {
			selected = append(selected, pkg)
		}
	}

	return selected, nil
}

// Compile compiles the patterns of one group.
func Compile(groupName string, patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))

	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.New(InvalidPatternError{Group: groupName, Pattern: pattern, Err: err})
		}

		globs = append(globs, compiled)
	}

	return globs, nil
}

// Names returns the sorted group names.
func Names(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// UnknownGroupError is returned when the requested group is not configured.
type UnknownGroupError struct {
	Name  string
	Known []string
}

func (err UnknownGroupError) Error() string {
	return fmt.Sprintf("unknown group %q", err.Name)
}

// Hint implements the hinter interface.
func (err UnknownGroupError) Hint() string {
	if len(err.Known) == 0 {
		return "define the group under [groups] in releasekit.toml"
	}

	return "use one of the configured groups: " + strings.Join(err.Known, ", ")
}

// InvalidPatternError is returned for a group pattern that is not a valid glob.
type InvalidPatternError struct {
	Err     error
	Group   string
	Pattern string
}

func (err InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q in group %q: %v", err.Pattern, err.Group, err.Err)
}

func (err InvalidPatternError) Unwrap() error {
	return err.Err
}

// Hint implements the hinter interface.
func (err InvalidPatternError) Hint() string {
	return "group patterns are globs such as \"core-*\""
}
