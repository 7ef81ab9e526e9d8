package workspace

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"gopkg.in/yaml.v3"
)

const PubspecFile = "pubspec.yaml"

var _ backend.Workspace = (*Dart)(nil)

// Dart is a pub workspace (the `workspace` list of the root pubspec.yaml) or, without one, every pubspec.yaml
// below the root. `publish_to: none` marks a package as not publishable.
type Dart struct {
	base
}

func NewDart(l log.Logger, root string) *Dart {
	return &Dart{base: newBase(l, component.Dart, root)}
}

type pubspec struct {
	Dependencies map[string]any `yaml:"dependencies"`
	Name         string         `yaml:"name"`
	Version      string         `yaml:"version"`
	PublishTo    string         `yaml:"publish_to"`
	Workspace    []string       `yaml:"workspace"`
}

func (w *Dart) load(rel string) (*pubspec, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	var spec pubspec
	if err := yaml.Unmarshal([]byte(contents), &spec); err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	return &spec, nil
}

func (w *Dart) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	manifests, err := w.findManifests([]string{"**"}, PubspecFile)
	if err != nil {
		return nil, err
	}

	if slices.Contains(manifests, PubspecFile) {
		root, err := w.load(PubspecFile)
		if err != nil {
			return nil, err
		}

		if len(root.Workspace) > 0 {
			members, err := w.findManifests(root.Workspace, PubspecFile)
			if err != nil {
				return nil, err
			}

			manifests = append([]string{PubspecFile}, members...)
		}
	}

	pkgs := make(component.Packages, 0, len(manifests))

	for _, rel := range slices.Compact(manifests) {
		spec, err := w.load(rel)
		if err != nil {
			return nil, err
		}

		if spec.Name == "" {
			return nil, errors.New(ManifestError{Path: rel, Reason: "missing name"})
		}

		// A workspace root without a version only groups its members.
		if rel == PubspecFile && len(spec.Workspace) > 0 && spec.Version == "" {
			continue
		}

		pkgs = append(pkgs, w.newPackage(rel, spec))
	}

	return w.filter(pkgs, excludePatterns)
}

func (w *Dart) newPackage(rel string, spec *pubspec) *component.Package {
	dir := packageDir(rel)

	version := spec.Version
	if version == "" {
		version = "0.0.0"
	}

	var deps, internal []string

	for name, value := range spec.Dependencies {
		if source, ok := value.(map[string]any); ok {
			if _, isSDK := source["sdk"]; isSDK {
				continue
			}

			if _, isPath := source["path"]; isPath {
				internal = append(internal, name)
			}
		}

		deps = append(deps, name)
	}

	slices.Sort(deps)
	slices.Sort(internal)

	return &component.Package{
		Name:          spec.Name,
		Path:          dir,
		ManifestPath:  rel,
		Version:       version,
		Ecosystem:     component.Dart,
		AllDeps:       deps,
		InternalDeps:  internal,
		IsPublishable: spec.PublishTo != "none" && !isSample(dir),
	}
}

var pubspecVersionField = regexp.MustCompile(`(?m)^(version:[ \t]*["']?)([^"'\s#]+)(["']?)`)

func (w *Dart) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	return w.rewriteVersion(manifestPath, pubspecVersionField, newVersion, dryRun)
}

// RewriteDependencyVersion updates a hosted constraint on dep (`dep: ^1.2.0`), keeping its operator. Path
// and git dependencies are left alone.
func (w *Dart) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	contents, err := w.read(manifestPath)
	if err != nil {
		return err
	}

	re := regexp.MustCompile(fmt.Sprintf(`(?m)(^[ \t]+%s:[ \t]*["']?)([\^~<>=]*[0-9][^"'\s#]*)(["']?)`, regexp.QuoteMeta(dep)))

	changed := false

	updated := re.ReplaceAllStringFunc(contents, func(match string) string {
		groups := re.FindStringSubmatch(match)
		changed = true

		return groups[1] + requirementOperator(groups[2]) + newVersion + groups[3]
	})

	if !changed {
		return nil
	}

	return w.write(manifestPath, updated, dryRun)
}
