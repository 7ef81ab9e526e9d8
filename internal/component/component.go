// Package component provides the types for representing discovered workspace packages.
//
// This package contains only data types and their associated methods, with no discovery logic.
// It exists separately from the workspace adapters so that the graph, versioning and runner
// packages can depend on these types without creating circular dependencies.
package component

import (
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Ecosystem identifies the packaging ecosystem a package belongs to.
type Ecosystem string

const (
	Python Ecosystem = "python"
	Go     Ecosystem = "go"
	Rust   Ecosystem = "rust"
	JS     Ecosystem = "js"
	Dart   Ecosystem = "dart"
	Java   Ecosystem = "java"
	Kotlin Ecosystem = "kotlin"
)

// AllEcosystems lists the supported ecosystems in a stable order.
var AllEcosystems = []Ecosystem{Python, Go, Rust, JS, Dart, Java, Kotlin}

// ParseEcosystem returns the Ecosystem with the given identifier.
func ParseEcosystem(str string) (Ecosystem, bool) {
	eco := Ecosystem(strings.ToLower(strings.TrimSpace(str)))

	return eco, slices.Contains(AllEcosystems, eco)
}

// Package is one discovered unit of publishable code.
//
// A Package is constructed once per discovery pass and treated as immutable afterwards.
type Package struct {
	// Name is normalized with the ecosystem casing rules, see NormalizeName.
	Name string
	// Path is the package directory relative to the workspace root, "." for the root itself.
	// It uses forward slashes on every platform.
	Path string
	// ManifestPath is the manifest file relative to the workspace root, e.g. `core/pyproject.toml`.
	ManifestPath string
	// Version is the declared version. Ecosystems without a manifest version use "0.0.0".
	Version   string
	Ecosystem Ecosystem
	// AllDeps holds every declared dependency before workspace resolution.
	AllDeps []string
	// InternalDeps are the dependencies that resolve to other workspace packages.
	InternalDeps []string
	// ExternalDeps are the dependencies outside the workspace.
	ExternalDeps []string
	// IsPublishable is false for private, example and sample packages.
	IsPublishable bool
}

// DependsOn reports whether the package has a direct internal dependency on name.
func (pkg *Package) DependsOn(name string) bool {
	return slices.Contains(pkg.InternalDeps, name)
}

// Packages is a list of discovered packages.
type Packages []*Package

// Sort sorts the packages by name and returns them.
func (pkgs Packages) Sort() Packages {
	sort.SliceStable(pkgs, func(i, j int) bool {
		return pkgs[i].Name < pkgs[j].Name
	})

	return pkgs
}

// Names returns the package names in list order.
func (pkgs Packages) Names() []string {
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		names = append(names, pkg.Name)
	}

	return names
}

// Find returns the package with the given name, or nil.
func (pkgs Packages) Find(name string) *Package {
	for _, pkg := range pkgs {
		if pkg.Name == name {
			return pkg
		}
	}

	return nil
}

// Publishable returns the packages that can be published.
func (pkgs Packages) Publishable() Packages {
	var result Packages

	for _, pkg := range pkgs {
		if pkg.IsPublishable {
			result = append(result, pkg)
		}
	}

	return result
}

// ByEcosystem returns the packages of the given ecosystem.
func (pkgs Packages) ByEcosystem(eco Ecosystem) Packages {
	var result Packages

	for _, pkg := range pkgs {
		if pkg.Ecosystem == eco {
			result = append(result, pkg)
		}
	}

	return result
}

var pep503Separators = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies the ecosystem casing rules to a package name.
// Python names follow PEP 503; other ecosystems compare names as declared.
func NormalizeName(eco Ecosystem, name string) string {
	name = strings.TrimSpace(name)

	if eco == Python {
		return strings.ToLower(pep503Separators.ReplaceAllString(name, "-"))
	}

	return name
}

// ResolveInternalDeps splits every package's AllDeps into InternalDeps, which name other
// packages of the workspace, and ExternalDeps. Dependency names are normalized with the
// depending package's ecosystem rules. Both lists are sorted and deduplicated.
//
// InternalDeps already set by an adapter (workspace protocol or path dependencies) are kept
// even when they do not resolve; the graph reports those as orphans.
func ResolveInternalDeps(pkgs Packages) {
	names := make(map[string]struct{}, len(pkgs))
	for _, pkg := range pkgs {
		names[pkg.Name] = struct{}{}
	}

	for _, pkg := range pkgs {
		internal, external := slices.Clone(pkg.InternalDeps), []string{}

		for _, dep := range pkg.AllDeps {
			dep = NormalizeName(pkg.Ecosystem, dep)
			if _, ok := names[dep]; ok {
				internal = append(internal, dep)
			} else {
				external = append(external, dep)
			}
		}

		slices.Sort(internal)
		slices.Sort(external)

		pkg.InternalDeps = slices.Compact(internal)
		pkg.ExternalDeps = slices.Compact(external)
	}
}
