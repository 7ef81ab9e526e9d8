package versioning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
)

const (
	// DefaultTagFormat is used by every ecosystem without its own format.
	DefaultTagFormat = "{name}-v{version}"
	// GoTagFormat follows the Go module tag convention; a root module is tagged `v{version}`.
	GoTagFormat = "{path}/v{version}"

	DefaultConcurrency = 8
)

// Policy controls how versions are computed.
type Policy struct {
	// TagFormats overrides the tag format per ecosystem. Placeholders: {name}, {version}, {path}.
	TagFormats map[component.Ecosystem]string
	// Cohorts maps a cohort name to glob patterns over package names. Members share one version.
	Cohorts map[string][]string
	// Force raises every publishable package to at least this bump.
	Force Bump
	// Prerelease turns every bump into a prerelease with this label.
	Prerelease string
	// Concurrency bounds the per-package history lookups.
	Concurrency int
	MajorOnZero bool
	// PropagateToDependents bumps every dependent of a bumped package by at least patch.
	PropagateToDependents bool
}

// TagFormat returns the tag format for the package's ecosystem.
func (policy *Policy) TagFormat(eco component.Ecosystem) string {
	if format, ok := policy.TagFormats[eco]; ok && format != "" {
		return format
	}

	if eco == component.Go {
		return GoTagFormat
	}

	return DefaultTagFormat
}

func (policy *Policy) bumpOptions() BumpOptions {
	return BumpOptions{Prerelease: policy.Prerelease, MajorOnZero: policy.MajorOnZero}
}

func (policy *Policy) concurrency() int {
	if policy.Concurrency > 0 {
		return policy.Concurrency
	}

	return DefaultConcurrency
}

// FormatTag renders a tag format for the package and version.
func FormatTag(format string, pkg *component.Package, version string) string {
	prefix, suffix := splitTagFormat(format, pkg)

	return prefix + version + suffix
}

// splitTagFormat returns the parts of a rendered tag around the version.
func splitTagFormat(format string, pkg *component.Package) (string, string) {
	path := strings.Trim(pkg.Path, "/")
	if path == "" || path == "." {
		format = strings.TrimPrefix(format, "{path}/")
	}

	replacer := strings.NewReplacer("{name}", pkg.Name, "{path}", path)

	prefix, suffix, found := strings.Cut(format, "{version}")
	if !found {
		return replacer.Replace(format), ""
	}

	return replacer.Replace(prefix), replacer.Replace(suffix)
}

// MixedSchemeCohortError is returned when the members of one cohort use different version schemes.
type MixedSchemeCohortError struct {
	Cohort  string
	Names   []string
	Schemes []string
}

func (err MixedSchemeCohortError) Error() string {
	return fmt.Sprintf("cohort %s mixes version schemes: %s uses %s, %s uses %s",
		err.Cohort, err.Names[0], err.Schemes[0], err.Names[1], err.Schemes[1])
}

// Hint implements the hinter interface.
func (err MixedSchemeCohortError) Hint() string {
	return "split the cohort so that every member belongs to ecosystems sharing one version scheme"
}

// Cohort is a compiled version consistency group.
type Cohort struct {
	Name     string
	patterns []glob.Glob
}

// Match reports whether the package name belongs to the cohort.
func (cohort *Cohort) Match(name string) bool {
	for _, pattern := range cohort.patterns {
		if pattern.Match(name) {
			return true
		}
	}

	return false
}

// CompileCohorts compiles the policy cohorts, sorted by name.
func (policy *Policy) CompileCohorts() ([]*Cohort, error) {
	names := make([]string, 0, len(policy.Cohorts))
	for name := range policy.Cohorts {
		names = append(names, name)
	}

	sort.Strings(names)

	cohorts := make([]*Cohort, 0, len(names))

	for _, name := range names {
		cohort := &Cohort{Name: name}

		for _, pattern := range policy.Cohorts[name] {
			compiled, err := glob.Compile(pattern)
			if err != nil {
				return nil, errors.Errorf("invalid pattern %q in cohort %q: %w", pattern, name, err)
			}

			cohort.patterns = append(cohort.patterns, compiled)
		}

		cohorts = append(cohorts, cohort)
	}

	return cohorts, nil
}
