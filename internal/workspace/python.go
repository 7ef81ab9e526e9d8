package workspace

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const PyProjectFile = "pyproject.toml"

const privateClassifier = "Private :: Do Not Upload"

var _ backend.Workspace = (*Python)(nil)

// Python is a uv workspace: a root pyproject.toml whose `[tool.uv.workspace]` table lists the member globs.
// Without a workspace table the root project is the only package.
type Python struct {
	base
}

func NewPython(l log.Logger, root string) *Python {
	return &Python{base: newBase(l, component.Python, root)}
}

type pyProject struct {
	Project struct {
		Name                 string              `toml:"name"`
		Version              string              `toml:"version"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		Classifiers          []string            `toml:"classifiers"`
		Dynamic              []string            `toml:"dynamic"`
	} `toml:"project"`
	Tool struct {
		UV struct {
			Workspace *struct {
				Members []string `toml:"members"`
				Exclude []string `toml:"exclude"`
			} `toml:"workspace"`
			Sources map[string]struct {
				Workspace bool   `toml:"workspace"`
				Path      string `toml:"path"`
			} `toml:"sources"`
		} `toml:"uv"`
	} `toml:"tool"`
}

func (w *Python) load(rel string) (*pyProject, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	var project pyProject
	if _, err := toml.Decode(contents, &project); err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	return &project, nil
}

func (w *Python) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	root, err := w.load(PyProjectFile)
	if err != nil {
		return nil, err
	}

	manifests := []string{PyProjectFile}

	if ws := root.Tool.UV.Workspace; ws != nil {
		members, err := w.findManifests(ws.Members, PyProjectFile)
		if err != nil {
			return nil, err
		}

		excluded, err := w.findManifests(ws.Exclude, PyProjectFile)
		if err != nil {
			return nil, err
		}

		for _, member := range members {
			if member != PyProjectFile && !slices.Contains(excluded, member) {
				manifests = append(manifests, member)
			}
		}
	}

	var pkgs component.Packages

	for _, rel := range manifests {
		project := root
		if rel != PyProjectFile {
			if project, err = w.load(rel); err != nil {
				return nil, err
			}
		}

		// A virtual workspace root has no [project] table.
		if project.Project.Name == "" {
			if rel == PyProjectFile {
				continue
			}

			return nil, errors.New(ManifestError{Path: rel, Reason: "missing project.name"})
		}

		pkgs = append(pkgs, w.newPackage(rel, project))
	}

	return w.filter(pkgs, excludePatterns)
}

func (w *Python) newPackage(rel string, project *pyProject) *component.Package {
	dir := packageDir(rel)

	version := project.Project.Version
	if version == "" {
		if slices.Contains(project.Project.Dynamic, "version") {
			w.logger.Debugf("%s declares a dynamic version", rel)
		}

		version = "0.0.0"
	}

	var deps, internal []string

	for _, requirement := range project.Project.Dependencies {
		if name := requirementName(requirement); name != "" {
			deps = append(deps, name)
		}
	}

	for name, source := range project.Tool.UV.Sources {
		if source.Workspace {
			internal = append(internal, component.NormalizeName(component.Python, name))
		}
	}

	slices.Sort(internal)

	return &component.Package{
		Name:          component.NormalizeName(component.Python, project.Project.Name),
		Path:          dir,
		ManifestPath:  rel,
		Version:       version,
		Ecosystem:     component.Python,
		AllDeps:       deps,
		InternalDeps:  internal,
		IsPublishable: !isSample(dir) && !slices.Contains(project.Project.Classifiers, privateClassifier),
	}
}

var requirementPattern = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

// requirementName extracts the distribution name of a PEP 508 requirement.
func requirementName(requirement string) string {
	match := requirementPattern.FindStringSubmatch(requirement)
	if match == nil {
		return ""
	}

	return component.NormalizeName(component.Python, match[1])
}

// RewriteVersion sets project.version.
func (w *Python) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	contents, err := w.read(manifestPath)
	if err != nil {
		return "", err
	}

	updated, old, ok := replaceInTable(contents, "project", tomlVersionLine, newVersion)
	if !ok {
		return "", errors.New(ManifestError{Path: manifestPath, Reason: "no project.version field"})
	}

	if old == newVersion {
		return old, nil
	}

	return old, w.write(manifestPath, updated, dryRun)
}

// RewriteDependencyVersion updates the version in every pinned requirement on dep, keeping its operator.
// Unpinned requirements are left alone.
func (w *Python) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	contents, err := w.read(manifestPath)
	if err != nil {
		return err
	}

	re := requirementSpecPattern(dep)

	updated, changed := replaceAllInTables(contents, []string{"project", "project.optional-dependencies", "dependency-groups"}, re, func(string) string {
		return newVersion
	})
	if !changed {
		w.logger.Debugf("%s has no pinned requirement on %s", manifestPath, dep)
		return nil
	}

	return w.write(manifestPath, updated, dryRun)
}

// requirementSpecPattern matches `"<dep> <op> <version>` with any PEP 503 spelling of dep.
func requirementSpecPattern(dep string) *regexp.Regexp {
	parts := pep503Parts.Split(strings.ToLower(dep), -1)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}

	name := strings.Join(parts, `[-_.]+`)

	return regexp.MustCompile(fmt.Sprintf(`(?i)(["']%s\s*(?:\[[^\]]*\])?\s*(?:===|==|~=|>=|<=|!=|>|<)\s*)([0-9][^"',;\s]*)()`, name))
}

var pep503Parts = regexp.MustCompile(`[-_.]+`)
