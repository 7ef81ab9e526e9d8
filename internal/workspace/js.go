package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
	"gopkg.in/yaml.v3"
)

const (
	PackageJSONFile   = "package.json"
	PNPMWorkspaceFile = "pnpm-workspace.yaml"

	workspaceProtocol = "workspace:"
)

var _ backend.Workspace = (*JS)(nil)

// JS is a pnpm workspace (pnpm-workspace.yaml) or an npm/yarn workspace (the `workspaces` field of the root
// package.json). Private packages are discovered but not publishable.
type JS struct {
	base
}

func NewJS(l log.Logger, root string) *JS {
	return &JS{base: newBase(l, component.JS, root)}
}

type packageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Workspaces           json.RawMessage   `json:"workspaces"`
	Private              bool              `json:"private"`
}

// workspaceGlobs decodes `"workspaces": [...]` and `"workspaces": {"packages": [...]}`.
func (manifest *packageJSON) workspaceGlobs() []string {
	if len(manifest.Workspaces) == 0 {
		return nil
	}

	var globs []string
	if err := json.Unmarshal(manifest.Workspaces, &globs); err == nil {
		return globs
	}

	var object struct {
		Packages []string `json:"packages"`
	}

	if err := json.Unmarshal(manifest.Workspaces, &object); err == nil {
		return object.Packages
	}

	return nil
}

func (w *JS) load(rel string) (*packageJSON, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	var manifest packageJSON
	if err := json.Unmarshal([]byte(contents), &manifest); err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	return &manifest, nil
}

// memberGlobs returns the include and exclude ("!" prefixed) workspace globs.
func (w *JS) memberGlobs(root *packageJSON) (include, exclude []string, err error) {
	globs := root.workspaceGlobs()

	if util.FileExists(w.abs(PNPMWorkspaceFile)) {
		contents, err := w.read(PNPMWorkspaceFile)
		if err != nil {
			return nil, nil, err
		}

		var pnpm struct {
			Packages []string `yaml:"packages"`
		}

		if err := yaml.Unmarshal([]byte(contents), &pnpm); err != nil {
			return nil, nil, errors.New(ManifestError{Path: PNPMWorkspaceFile, Reason: err.Error()})
		}

		globs = pnpm.Packages
	}

	for _, g := range globs {
		if negated, ok := strings.CutPrefix(g, "!"); ok {
			exclude = append(exclude, negated)
		} else {
			include = append(include, g)
		}
	}

	return include, exclude, nil
}

func (w *JS) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	root, err := w.load(PackageJSONFile)
	if err != nil {
		return nil, err
	}

	include, exclude, err := w.memberGlobs(root)
	if err != nil {
		return nil, err
	}

	members, err := w.findManifests(include, PackageJSONFile)
	if err != nil {
		return nil, err
	}

	excluded, err := w.findManifests(exclude, PackageJSONFile)
	if err != nil {
		return nil, err
	}

	manifests := []string{}
	if len(include) == 0 {
		manifests = append(manifests, PackageJSONFile)
	}

	for _, member := range members {
		if member != PackageJSONFile && !slices.Contains(excluded, member) {
			manifests = append(manifests, member)
		}
	}

	pkgs := make(component.Packages, 0, len(manifests))

	for _, rel := range manifests {
		manifest := root
		if rel != PackageJSONFile {
			if manifest, err = w.load(rel); err != nil {
				return nil, err
			}
		}

		if manifest.Name == "" {
			return nil, errors.New(ManifestError{Path: rel, Reason: "missing name"})
		}

		pkgs = append(pkgs, w.newPackage(rel, manifest))
	}

	return w.filter(pkgs, excludePatterns)
}

func (w *JS) newPackage(rel string, manifest *packageJSON) *component.Package {
	dir := packageDir(rel)

	version := manifest.Version
	if version == "" {
		version = "0.0.0"
	}

	var deps, internal []string

	for _, table := range []map[string]string{manifest.Dependencies, manifest.PeerDependencies, manifest.OptionalDependencies} {
		for name, spec := range table {
			deps = append(deps, name)

			if strings.HasPrefix(spec, workspaceProtocol) {
				internal = append(internal, name)
			}
		}
	}

	// Workspace dev dependencies order builds as well.
	for name, spec := range manifest.DevDependencies {
		if strings.HasPrefix(spec, workspaceProtocol) {
			internal = append(internal, name)
		}
	}

	slices.Sort(deps)
	slices.Sort(internal)

	return &component.Package{
		Name:          manifest.Name,
		Path:          dir,
		ManifestPath:  rel,
		Version:       version,
		Ecosystem:     component.JS,
		AllDeps:       slices.Compact(deps),
		InternalDeps:  slices.Compact(internal),
		IsPublishable: !manifest.Private && !isSample(dir),
	}
}

var jsonVersionField = regexp.MustCompile(`(?m)^(\s*"version"\s*:\s*")([^"]*)(")`)

func (w *JS) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	return w.rewriteVersion(manifestPath, jsonVersionField, newVersion, dryRun)
}

// RewriteDependencyVersion updates every range on dep, keeping its operator. `workspace:` ranges are resolved
// by pnpm at publish time and are left alone.
func (w *JS) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	contents, err := w.read(manifestPath)
	if err != nil {
		return err
	}

	re := regexp.MustCompile(fmt.Sprintf(`("%s"\s*:\s*")([^"]*)(")`, regexp.QuoteMeta(dep)))

	changed := false

	updated := re.ReplaceAllStringFunc(contents, func(match string) string {
		groups := re.FindStringSubmatch(match)
		if strings.HasPrefix(groups[2], workspaceProtocol) {
			return match
		}

		changed = true

		return groups[1] + requirementOperator(groups[2]) + newVersion + groups[3]
	})

	if !changed {
		return nil
	}

	return w.write(manifestPath, updated, dryRun)
}
