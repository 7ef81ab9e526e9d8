package workspace

import (
	"context"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
)

const GradlePropertiesFile = "gradle.properties"

var (
	gradleSettingsFiles = []string{"settings.gradle.kts", "settings.gradle"}
	gradleBuildFiles    = []string{"build.gradle.kts", "build.gradle"}

	gradleInclude       = regexp.MustCompile(`(?m)^\s*include\b\s*\(?([^)\n]*)\)?`)
	gradleRootName      = regexp.MustCompile(`rootProject\.name\s*=\s*["']([^"']+)["']`)
	gradleQuoted        = regexp.MustCompile(`["']([^"']+)["']`)
	gradleProjectDep    = regexp.MustCompile(`project\(\s*(?:path\s*[:=]\s*)?["'](:[^"']*)["']\s*\)`)
	gradleGroupAssign   = regexp.MustCompile(`(?m)^\s*group\s*=\s*["']([^"']+)["']`)
	gradleVersionAssign = regexp.MustCompile(`(?m)^(\s*version\s*=\s*["'])([^"']+)(["'])`)
	gradlePublishPlugin = regexp.MustCompile(`maven-publish|com\.vanniktech\.maven\.publish`)
	propertiesLine      = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z0-9_.-]+)[ \t]*[=:][ \t]*(.*?)[ \t]*$`)
)

var _ backend.Workspace = (*Kotlin)(nil)

// Kotlin is a Gradle build. Subprojects come from the `include` statements of the settings script; the root
// project is a package only in a single project build. Versions live in gradle.properties or in a
// `version = "..."` assignment of the build script. A project is publishable when it applies maven-publish.
type Kotlin struct {
	base
}

func NewKotlin(l log.Logger, root string) *Kotlin {
	return &Kotlin{base: newBase(l, component.Kotlin, root)}
}

func (w *Kotlin) firstExisting(dir string, names []string) string {
	for _, name := range names {
		rel := path.Join(dir, name)
		if util.FileExists(w.abs(rel)) {
			return rel
		}
	}

	return ""
}

// projectDirs maps Gradle project paths (":a:b") to directories ("a/b").
func (w *Kotlin) projectDirs() (map[string]string, error) {
	settings := w.firstExisting(".", gradleSettingsFiles)
	if settings == "" {
		return nil, errors.New(ManifestError{Path: gradleSettingsFiles[0], Reason: "no Gradle settings script"})
	}

	contents, err := w.read(settings)
	if err != nil {
		return nil, err
	}

	dirs := map[string]string{}

	for _, include := range gradleInclude.FindAllStringSubmatch(contents, -1) {
		for _, quoted := range gradleQuoted.FindAllStringSubmatch(include[1], -1) {
			projectPath := ":" + strings.TrimPrefix(quoted[1], ":")
			dirs[projectPath] = strings.ReplaceAll(strings.TrimPrefix(projectPath, ":"), ":", "/")
		}
	}

	if len(dirs) == 0 {
		dirs[":"] = "."
	}

	return dirs, nil
}

func (w *Kotlin) properties(rel string) map[string]string {
	props := map[string]string{}

	contents, err := w.read(rel)
	if err != nil {
		return props
	}

	for _, match := range propertiesLine.FindAllStringSubmatch(contents, -1) {
		if !strings.HasPrefix(strings.TrimSpace(match[0]), "#") {
			props[match[1]] = match[2]
		}
	}

	return props
}

func (w *Kotlin) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	dirs, err := w.projectDirs()
	if err != nil {
		return nil, err
	}

	rootProps := w.properties(GradlePropertiesFile)

	type project struct {
		pkg  *component.Package
		deps []string
	}

	projects := map[string]*project{}

	for projectPath, dir := range dirs {
		buildFile := w.firstExisting(dir, gradleBuildFiles)

		script := ""
		if buildFile != "" {
			if script, err = w.read(buildFile); err != nil {
				return nil, err
			}
		}

		props := w.properties(path.Join(dir, GradlePropertiesFile))

		group := firstNonEmpty(props["group"], submatch(gradleGroupAssign, script), rootProps["group"])

		version, manifest := w.versionSource(dir, buildFile, script, props, rootProps)
		if manifest == "" {
			manifest = buildFile
		}

		name := path.Base(dir)
		if dir == "." {
			name = firstNonEmpty(submatch(gradleRootName, w.settingsScript()), path.Base(w.root))
		}

		if group != "" {
			name = group + ":" + name
		}

		var deps []string
		for _, match := range gradleProjectDep.FindAllStringSubmatch(script, -1) {
			deps = append(deps, match[1])
		}

		projects[projectPath] = &project{
			pkg: &component.Package{
				Name:          name,
				Path:          dir,
				ManifestPath:  manifest,
				Version:       firstNonEmpty(version, "0.0.0"),
				Ecosystem:     component.Kotlin,
				IsPublishable: gradlePublishPlugin.MatchString(script) && !isSample(dir),
			},
			deps: deps,
		}
	}

	pkgs := make(component.Packages, 0, len(projects))

	for _, p := range projects {
		for _, dep := range p.deps {
			if target, ok := projects[dep]; ok {
				p.pkg.InternalDeps = append(p.pkg.InternalDeps, target.pkg.Name)
			} else {
				p.pkg.InternalDeps = append(p.pkg.InternalDeps, dep)
			}
		}

		slices.Sort(p.pkg.InternalDeps)
		p.pkg.InternalDeps = slices.Compact(p.pkg.InternalDeps)
		pkgs = append(pkgs, p.pkg)
	}

	return w.filter(pkgs, excludePatterns)
}

// versionSource returns the project version and the file that declares it.
func (w *Kotlin) versionSource(dir, buildFile, script string, props, rootProps map[string]string) (version, manifest string) {
	if version = props["version"]; version != "" {
		return version, path.Join(dir, GradlePropertiesFile)
	}

	if version = submatchN(gradleVersionAssign, script, 2); version != "" {
		return version, buildFile
	}

	if version = rootProps["version"]; version != "" {
		return version, GradlePropertiesFile
	}

	return "", ""
}

func (w *Kotlin) settingsScript() string {
	settings := w.firstExisting(".", gradleSettingsFiles)
	if settings == "" {
		return ""
	}

	contents, _ := w.read(settings)

	return contents
}

var propertiesVersion = regexp.MustCompile(`(?m)^([ \t]*version[ \t]*[=:][ \t]*)([^\s#]+)()`)

// RewriteVersion sets `version` in gradle.properties or the `version = "..."` assignment of a build script,
// depending on manifestPath.
func (w *Kotlin) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	if path.Base(manifestPath) == GradlePropertiesFile {
		return w.rewriteVersion(manifestPath, propertiesVersion, newVersion, dryRun)
	}

	return w.rewriteVersion(manifestPath, gradleVersionAssign, newVersion, dryRun)
}

// RewriteDependencyVersion does nothing: project dependencies in a Gradle build carry no version.
func (w *Kotlin) RewriteDependencyVersion(_ context.Context, manifestPath, dep, _ string, _ bool) error {
	w.logger.Debugf("Gradle project dependency %s in %s has no version to rewrite", dep, manifestPath)
	return nil
}

func submatch(re *regexp.Regexp, s string) string {
	return submatchN(re, s, 1)
}

func submatchN(re *regexp.Regexp, s string, n int) string {
	match := re.FindStringSubmatch(s)
	if len(match) <= n {
		return ""
	}

	return match[n]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
