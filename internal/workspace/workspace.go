// Package workspace implements backend.Workspace for every supported ecosystem: uv (Python), Go modules, Cargo,
// pnpm/npm, Dart pub, Maven and Gradle.
//
// Discovery is a pure function of the filesystem. Manifests are located with go-zglob, exclusions are gobwas
// globs matched against package directories and names, and version rewrites touch only the version text so the
// rest of the manifest keeps its formatting.
package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
	"github.com/mattn/go-zglob"
)

// ignoredDirs are never searched for manifests.
var ignoredDirs = map[string]bool{
	".git":         true,
	".venv":        true,
	"venv":         true,
	"node_modules": true,
	"target":       true,
	"build":        true,
	"dist":         true,
	".dart_tool":   true,
	".gradle":      true,
	"__pycache__":  true,
	"testdata":     true,
}

// sampleDirs mark packages that are discovered but never published.
var sampleDirs = map[string]bool{
	"example":  true,
	"examples": true,
	"sample":   true,
	"samples":  true,
}

// New returns the workspace adapter for eco rooted at root.
func New(l log.Logger, eco component.Ecosystem, root string) (backend.Workspace, error) {
	switch eco {
	case component.Python:
		return NewPython(l, root), nil
	case component.Go:
		return NewGo(l, root), nil
	case component.Rust:
		return NewRust(l, root), nil
	case component.JS:
		return NewJS(l, root), nil
	case component.Dart:
		return NewDart(l, root), nil
	case component.Java:
		return NewJava(l, root), nil
	case component.Kotlin:
		return NewKotlin(l, root), nil
	}

	return nil, errors.New(backend.UnknownEcosystemError(eco))
}

// rootMarkers are the files whose presence at the workspace root means the ecosystem is in use.
var rootMarkers = map[component.Ecosystem][]string{
	component.Python: {PyProjectFile},
	component.Go:     {GoWorkFile, GoModFile},
	component.Rust:   {CargoFile},
	component.JS:     {PackageJSONFile},
	component.Dart:   {PubspecFile},
	component.Java:   {POMFile},
	component.Kotlin: gradleSettingsFiles,
}

// Detect reports whether root holds a workspace of eco.
func Detect(eco component.Ecosystem, root string) bool {
	for _, marker := range rootMarkers[eco] {
		if util.FileExists(filepath.Join(root, marker)) {
			return true
		}
	}

	return false
}

type base struct {
	logger log.Logger
	root   string
	eco    component.Ecosystem
}

func newBase(l log.Logger, eco component.Ecosystem, root string) base {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return base{logger: l.WithField("ecosystem", string(eco)), root: root, eco: eco}
}

func (w *base) Ecosystem() component.Ecosystem {
	return w.eco
}

func (w *base) Root() string {
	return w.root
}

// abs resolves a slash separated path relative to the workspace root.
func (w *base) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(w.root, filepath.FromSlash(rel))
}

func (w *base) rel(abs string) (string, error) {
	rel, err := util.GetPathRelativeTo(abs, w.root)
	if err != nil {
		return "", err
	}

	return path.Clean(rel), nil
}

// findManifests returns the slash separated, root relative paths of fileName inside every directory matched
// by the member patterns. Results are sorted and deduplicated; ignored directories are dropped.
func (w *base) findManifests(members []string, fileName string) ([]string, error) {
	var found []string

	for _, member := range members {
		member = strings.TrimSuffix(strings.TrimPrefix(member, "./"), "/")
		if member == "" {
			member = "."
		}

		pattern := filepath.Join(w.root, filepath.FromSlash(member), fileName)

		matches, err := zglob.Glob(pattern)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, errors.Errorf("searching %s: %w", pattern, err)
		}

		for _, match := range matches {
			rel, err := w.rel(match)
			if err != nil {
				return nil, err
			}

			if !isIgnored(rel) {
				found = append(found, rel)
			}
		}
	}

	slices.Sort(found)

	return slices.Compact(found), nil
}

func (w *base) read(rel string) (string, error) {
	contents, err := os.ReadFile(w.abs(rel))
	if err != nil {
		return "", errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	return string(contents), nil
}

// write replaces the manifest contents. A dry run only logs.
func (w *base) write(rel, contents string, dryRun bool) error {
	if dryRun {
		w.logger.Infof("[dry-run] rewrite %s", rel)
		return nil
	}

	w.logger.Debugf("Rewriting %s", rel)

	return util.WriteFileAtomic(w.abs(rel), []byte(contents))
}

// rewriteVersion replaces the value group of the first match of re and writes the manifest. The expression
// must have exactly three groups: prefix, value and suffix.
func (w *base) rewriteVersion(rel string, re *regexp.Regexp, newVersion string, dryRun bool) (string, error) {
	contents, err := w.read(rel)
	if err != nil {
		return "", err
	}

	updated, old, ok := replaceFirst(contents, re, newVersion)
	if !ok {
		return "", errors.New(ManifestError{Path: rel, Reason: "no version field found"})
	}

	if old == newVersion {
		return old, nil
	}

	return old, w.write(rel, updated, dryRun)
}

// replaceFirst swaps the value group of the first match of re for value.
func replaceFirst(contents string, re *regexp.Regexp, value string) (updated, old string, ok bool) {
	loc := re.FindStringSubmatchIndex(contents)
	if loc == nil || len(loc) < 8 {
		return contents, "", false
	}

	old = contents[loc[4]:loc[5]]

	return contents[:loc[4]] + value + contents[loc[5]:], old, true
}

// packageDir returns the directory of a manifest, "." for the root.
func packageDir(manifestRel string) string {
	return path.Dir(manifestRel)
}

func isIgnored(rel string) bool {
	for _, segment := range strings.Split(path.Dir(rel), "/") {
		if ignoredDirs[segment] {
			return true
		}
	}

	return false
}

func isSample(dir string) bool {
	for _, segment := range strings.Split(dir, "/") {
		if sampleDirs[segment] {
			return true
		}
	}

	return false
}

// Excludes are gobwas globs matched against package directories and names.
type Excludes []glob.Glob

// CompileExcludes compiles exclude patterns with "/" as the separator.
func CompileExcludes(patterns []string) (Excludes, error) {
	excludes := make(Excludes, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.New(InvalidExcludeError{Pattern: pattern, Err: err})
		}

		excludes = append(excludes, g)
	}

	return excludes, nil
}

// Match reports whether the package is excluded by directory or by name.
func (excludes Excludes) Match(pkg *component.Package) bool {
	for _, g := range excludes {
		if g.Match(pkg.Path) || g.Match(pkg.Name) {
			return true
		}
	}

	return false
}

// filter drops excluded packages and sorts the rest by name.
func (w *base) filter(pkgs component.Packages, excludePatterns []string) (component.Packages, error) {
	excludes, err := CompileExcludes(excludePatterns)
	if err != nil {
		return nil, err
	}

	result := make(component.Packages, 0, len(pkgs))

	for _, pkg := range pkgs {
		if excludes.Match(pkg) {
			w.logger.Debugf("Excluding %s (%s)", pkg.Name, pkg.Path)
			continue
		}

		result = append(result, pkg)
	}

	return result.Sort(), nil
}

// ManifestError is returned for an unreadable or incomplete manifest.
type ManifestError struct {
	Path   string
	Reason string
}

func (err ManifestError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %s", err.Path, err.Reason)
}

// Hint implements the hinter interface.
func (err ManifestError) Hint() string {
	return fmt.Sprintf("fix %s or exclude its package from discovery", err.Path)
}

// InvalidExcludeError is returned for an exclude pattern that does not compile.
type InvalidExcludeError struct {
	Err     error
	Pattern string
}

func (err InvalidExcludeError) Error() string {
	return fmt.Sprintf("invalid exclude pattern %q: %v", err.Pattern, err.Err)
}

func (err InvalidExcludeError) Unwrap() error {
	return err.Err
}

// Hint implements the hinter interface.
func (err InvalidExcludeError) Hint() string {
	return "exclude patterns are globs such as `examples/*` or `*-internal`"
}
