package workspace

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const CargoFile = "Cargo.toml"

var _ backend.Workspace = (*Rust)(nil)

// Rust is a Cargo workspace. Members listed in `[workspace] members` are packages; a root `[package]` is one
// too.
type Rust struct {
	base
}

func NewRust(l log.Logger, root string) *Rust {
	return &Rust{base: newBase(l, component.Rust, root)}
}

type cargoDependency struct {
	Version   string `toml:"version"`
	Path      string `toml:"path"`
	Package   string `toml:"package"`
	Workspace bool   `toml:"workspace"`
}

// UnmarshalTOML accepts both `dep = "1.0"` and `dep = { ... }`.
func (dep *cargoDependency) UnmarshalTOML(data any) error {
	switch value := data.(type) {
	case string:
		dep.Version = value
	case map[string]any:
		dep.Version, _ = value["version"].(string)
		dep.Path, _ = value["path"].(string)
		dep.Package, _ = value["package"].(string)
		dep.Workspace, _ = value["workspace"].(bool)
	default:
		return errors.Errorf("unsupported dependency declaration %v", data)
	}

	return nil
}

type cargoManifest struct {
	Package *struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
		Publish any    `toml:"publish"`
	} `toml:"package"`
	Workspace *struct {
		Members []string `toml:"members"`
		Exclude []string `toml:"exclude"`
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
		Dependencies map[string]cargoDependency `toml:"dependencies"`
	} `toml:"workspace"`
	Dependencies      map[string]cargoDependency `toml:"dependencies"`
	BuildDependencies map[string]cargoDependency `toml:"build-dependencies"`
}

func (w *Rust) load(rel string) (*cargoManifest, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	var manifest cargoManifest
	if _, err := toml.Decode(contents, &manifest); err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	return &manifest, nil
}

func (w *Rust) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	root, err := w.load(CargoFile)
	if err != nil {
		return nil, err
	}

	manifests := []string{CargoFile}
	workspaceVersion := ""

	if ws := root.Workspace; ws != nil {
		workspaceVersion = ws.Package.Version

		members, err := w.findManifests(ws.Members, CargoFile)
		if err != nil {
			return nil, err
		}

		excluded, err := w.findManifests(ws.Exclude, CargoFile)
		if err != nil {
			return nil, err
		}

		for _, member := range members {
			if member != CargoFile && !slices.Contains(excluded, member) {
				manifests = append(manifests, member)
			}
		}
	}

	var pkgs component.Packages

	for _, rel := range manifests {
		manifest := root
		if rel != CargoFile {
			if manifest, err = w.load(rel); err != nil {
				return nil, err
			}
		}

		if manifest.Package == nil {
			if rel == CargoFile {
				continue
			}

			return nil, errors.New(ManifestError{Path: rel, Reason: "missing [package] table"})
		}

		pkgs = append(pkgs, w.newPackage(rel, manifest, workspaceVersion))
	}

	return w.filter(pkgs, excludePatterns)
}

func (w *Rust) newPackage(rel string, manifest *cargoManifest, workspaceVersion string) *component.Package {
	dir := packageDir(rel)

	version, _ := manifest.Package.Version.(string)
	if version == "" {
		// `version.workspace = true`
		version = workspaceVersion
	}

	if version == "" {
		version = "0.0.0"
	}

	var deps, internal []string

	for _, table := range []map[string]cargoDependency{manifest.Dependencies, manifest.BuildDependencies} {
		for key, dep := range table {
			name := key
			if dep.Package != "" {
				name = dep.Package
			}

			deps = append(deps, name)

			if dep.Path != "" {
				internal = append(internal, name)
			}
		}
	}

	slices.Sort(deps)
	slices.Sort(internal)

	return &component.Package{
		Name:          manifest.Package.Name,
		Path:          dir,
		ManifestPath:  rel,
		Version:       version,
		Ecosystem:     component.Rust,
		AllDeps:       deps,
		InternalDeps:  slices.Compact(internal),
		IsPublishable: !isSample(dir) && cargoPublishable(manifest.Package.Publish),
	}
}

// cargoPublishable interprets `publish = false` and `publish = []`.
func cargoPublishable(publish any) bool {
	switch value := publish.(type) {
	case bool:
		return value
	case []any:
		return len(value) > 0
	}

	return true
}

var cargoInheritedVersion = regexp.MustCompile(`(?m)^\s*version(?:\.workspace\s*=\s*true|\s*=\s*\{\s*workspace\s*=\s*true\s*\})`)

// RewriteVersion sets package.version. A version inherited from the workspace is rewritten in the root
// `[workspace.package]` table instead.
func (w *Rust) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	contents, err := w.read(manifestPath)
	if err != nil {
		return "", err
	}

	start, end, ok := tomlTable(contents, "package")
	if ok && cargoInheritedVersion.MatchString(contents[start:end]) {
		return w.rewriteWorkspaceVersion(newVersion, dryRun)
	}

	updated, old, ok := replaceInTable(contents, "package", tomlVersionLine, newVersion)
	if !ok {
		return "", errors.New(ManifestError{Path: manifestPath, Reason: "no package.version field"})
	}

	if old == newVersion {
		return old, nil
	}

	return old, w.write(manifestPath, updated, dryRun)
}

func (w *Rust) rewriteWorkspaceVersion(newVersion string, dryRun bool) (string, error) {
	contents, err := w.read(CargoFile)
	if err != nil {
		return "", err
	}

	updated, old, ok := replaceInTable(contents, "workspace.package", tomlVersionLine, newVersion)
	if !ok {
		return "", errors.New(ManifestError{Path: CargoFile, Reason: "no workspace.package.version field"})
	}

	if old == newVersion {
		return old, nil
	}

	return old, w.write(CargoFile, updated, dryRun)
}

var cargoDependencyTables = []string{
	"dependencies", "dev-dependencies", "build-dependencies", "workspace.dependencies",
}

// RewriteDependencyVersion updates `version` in the inline table of dep, keeping any requirement operator.
// Dependencies inherited with `workspace = true` carry no version and are left alone.
func (w *Rust) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	contents, err := w.read(manifestPath)
	if err != nil {
		return err
	}

	re := regexp.MustCompile(fmt.Sprintf(`(?m)(^\s*%s\s*=\s*\{[^}\n]*\bversion\s*=\s*")([^"]*)(")`, regexp.QuoteMeta(dep)))

	updated, changed := replaceAllInTables(contents, cargoDependencyTables, re, func(old string) string {
		return requirementOperator(old) + newVersion
	})
	if !changed {
		w.logger.Debugf("%s has no versioned dependency on %s", path.Base(manifestPath), dep)
		return nil
	}

	return w.write(manifestPath, updated, dryRun)
}

var operatorPrefix = regexp.MustCompile(`^[\^~=<>\s]*`)

// requirementOperator returns the leading operator of a version requirement such as "^1.2" or ">= 1".
func requirementOperator(requirement string) string {
	return operatorPrefix.FindString(requirement)
}
