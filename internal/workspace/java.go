package workspace

import (
	"context"
	"encoding/xml"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const POMFile = "pom.xml"

var _ backend.Workspace = (*Java)(nil)

// Java is a Maven multi-module build. Modules are followed recursively from the root pom.xml and packages are
// named `groupId:artifactId`, the coordinates Maven Central knows them by.
type Java struct {
	base
}

func NewJava(l log.Logger, root string) *Java {
	return &Java{base: newBase(l, component.Java, root)}
}

type pomCoordinates struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pom struct {
	pomCoordinates
	Parent       *pomCoordinates  `xml:"parent"`
	Packaging    string           `xml:"packaging"`
	Modules      []string         `xml:"modules>module"`
	Dependencies []pomCoordinates `xml:"dependencies>dependency"`
	Properties   struct {
		DeploySkip string `xml:"maven.deploy.skip"`
	} `xml:"properties"`
}

func (project *pom) coordinates() (group, version string) {
	group, version = project.GroupID, project.Version

	if project.Parent != nil {
		if group == "" {
			group = project.Parent.GroupID
		}

		if version == "" {
			version = project.Parent.Version
		}
	}

	return group, version
}

func (w *Java) load(rel string) (*pom, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	var project pom
	if err := xml.Unmarshal([]byte(contents), &project); err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	if project.ArtifactID == "" {
		return nil, errors.New(ManifestError{Path: rel, Reason: "missing artifactId"})
	}

	return &project, nil
}

func (w *Java) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	var (
		pkgs  component.Packages
		visit func(rel string) error
	)

	seen := map[string]bool{}

	visit = func(rel string) error {
		if seen[rel] {
			return nil
		}

		seen[rel] = true

		project, err := w.load(rel)
		if err != nil {
			return err
		}

		pkgs = append(pkgs, w.newPackage(rel, project))

		for _, module := range project.Modules {
			child := path.Join(packageDir(rel), strings.TrimSuffix(module, "/"+POMFile), POMFile)
			if err := visit(child); err != nil {
				return err
			}
		}

		return nil
	}

	if err := visit(POMFile); err != nil {
		return nil, err
	}

	return w.filter(pkgs, excludePatterns)
}

func (w *Java) newPackage(rel string, project *pom) *component.Package {
	dir := packageDir(rel)
	group, version := project.coordinates()

	if version == "" {
		version = "0.0.0"
	}

	var deps []string

	for _, dep := range project.Dependencies {
		if dep.GroupID == "" || dep.ArtifactID == "" {
			continue
		}

		// `${project.groupId}` is the group of modules in the same build.
		depGroup := dep.GroupID
		if depGroup == "${project.groupId}" || depGroup == "${project.parent.groupId}" {
			depGroup = group
		}

		deps = append(deps, depGroup+":"+dep.ArtifactID)
	}

	slices.Sort(deps)

	return &component.Package{
		Name:          group + ":" + project.ArtifactID,
		Path:          dir,
		ManifestPath:  rel,
		Version:       version,
		Ecosystem:     component.Java,
		AllDeps:       slices.Compact(deps),
		IsPublishable: project.Properties.DeploySkip != "true" && !isSample(dir),
	}
}

var (
	xmlVersionElement = regexp.MustCompile(`(<version>\s*)([^<\s]+)(\s*</version>)`)
	xmlNestedBlocks   = []string{"parent", "dependencies", "dependencyManagement", "build", "profiles", "reporting", "properties", "pluginRepositories", "repositories", "distributionManagement"}
)

// RewriteVersion sets the project's own <version>. A module that inherits its version has the version in its
// <parent> reference rewritten instead.
func (w *Java) RewriteVersion(_ context.Context, manifestPath, newVersion string, dryRun bool) (string, error) {
	contents, err := w.read(manifestPath)
	if err != nil {
		return "", err
	}

	start, end, ok := topLevelVersion(contents)
	if !ok {
		start, end, ok = parentVersion(contents)
	}

	if !ok {
		return "", errors.New(ManifestError{Path: manifestPath, Reason: "no <version> element"})
	}

	old := contents[start:end]
	if old == newVersion {
		return old, nil
	}

	if strings.HasPrefix(old, "${") {
		return "", errors.New(ManifestError{Path: manifestPath, Reason: "version is the property " + old + ", set it where the property is defined"})
	}

	return old, w.write(manifestPath, contents[:start]+newVersion+contents[end:], dryRun)
}

// topLevelVersion returns the span of the first <version> value outside of nested blocks.
func topLevelVersion(contents string) (start, end int, ok bool) {
	var blocks [][2]int

	for _, tag := range xmlNestedBlocks {
		blocks = append(blocks, elementSpans(contents, tag)...)
	}

	for _, loc := range xmlVersionElement.FindAllStringSubmatchIndex(contents, -1) {
		inside := slices.ContainsFunc(blocks, func(block [2]int) bool {
			return loc[0] >= block[0] && loc[1] <= block[1]
		})

		if !inside {
			return loc[4], loc[5], true
		}
	}

	return 0, 0, false
}

func parentVersion(contents string) (start, end int, ok bool) {
	spans := elementSpans(contents, "parent")
	if len(spans) == 0 {
		return 0, 0, false
	}

	block := contents[spans[0][0]:spans[0][1]]

	loc := xmlVersionElement.FindStringSubmatchIndex(block)
	if loc == nil {
		return 0, 0, false
	}

	return spans[0][0] + loc[4], spans[0][0] + loc[5], true
}

// elementSpans returns the spans of every <tag>...</tag> element. Elements of the same name do not nest in
// a POM, so the first closing tag ends the element.
func elementSpans(contents, tag string) [][2]int {
	var spans [][2]int

	open, closing := "<"+tag+">", "</"+tag+">"
	offset := 0

	for {
		start := strings.Index(contents[offset:], open)
		if start < 0 {
			return spans
		}

		start += offset

		end := strings.Index(contents[start:], closing)
		if end < 0 {
			return spans
		}

		end += start + len(closing)
		spans = append(spans, [2]int{start, end})
		offset = end
	}
}

// RewriteDependencyVersion updates the literal <version> of every <dependency> on dep (`groupId:artifactId`).
// Versions managed through properties are left alone.
func (w *Java) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	group, artifact, ok := strings.Cut(dep, ":")
	if !ok {
		return errors.Errorf("invalid Maven coordinates %q, expected groupId:artifactId", dep)
	}

	contents, err := w.read(manifestPath)
	if err != nil {
		return err
	}

	var sb strings.Builder

	last, changed := 0, false

	for _, span := range elementSpans(contents, "dependency") {
		block := contents[span[0]:span[1]]
		if !strings.Contains(block, "<artifactId>"+artifact+"</artifactId>") {
			continue
		}

		if !strings.Contains(block, "<groupId>"+group+"</groupId>") && !strings.Contains(block, "<groupId>${project.groupId}</groupId>") {
			continue
		}

		loc := xmlVersionElement.FindStringSubmatchIndex(block)
		if loc == nil || strings.HasPrefix(block[loc[4]:loc[5]], "${") {
			continue
		}

		sb.WriteString(contents[last : span[0]+loc[4]])
		sb.WriteString(newVersion)

		last = span[0] + loc[5]
		changed = true
	}

	if !changed {
		return nil
	}

	sb.WriteString(contents[last:])

	return w.write(manifestPath, sb.String(), dryRun)
}
