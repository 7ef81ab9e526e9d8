package workspace

import (
	"context"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
	"golang.org/x/mod/modfile"
)

const (
	GoModFile  = "go.mod"
	GoWorkFile = "go.work"

	// GoPlaceholderVersion is reported for modules, whose versions live in VCS tags only.
	GoPlaceholderVersion = "0.0.0"
)

var _ backend.Workspace = (*Go)(nil)

// Go is a tree of Go modules, either the `use` directives of go.work or every go.mod below the root.
type Go struct {
	base
}

func NewGo(l log.Logger, root string) *Go {
	return &Go{base: newBase(l, component.Go, root)}
}

func (w *Go) members() ([]string, error) {
	if !util.FileExists(w.abs(GoWorkFile)) {
		return w.findManifests([]string{"**"}, GoModFile)
	}

	contents, err := w.read(GoWorkFile)
	if err != nil {
		return nil, err
	}

	work, err := modfile.ParseWork(GoWorkFile, []byte(contents), nil)
	if err != nil {
		return nil, errors.New(ManifestError{Path: GoWorkFile, Reason: err.Error()})
	}

	dirs := make([]string, 0, len(work.Use))
	for _, use := range work.Use {
		dirs = append(dirs, use.Path)
	}

	return w.findManifests(dirs, GoModFile)
}

func (w *Go) parse(rel string) (*modfile.File, error) {
	contents, err := w.read(rel)
	if err != nil {
		return nil, err
	}

	file, err := modfile.Parse(rel, []byte(contents), nil)
	if err != nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: err.Error()})
	}

	if file.Module == nil {
		return nil, errors.New(ManifestError{Path: rel, Reason: "missing module directive"})
	}

	return file, nil
}

func (w *Go) Discover(_ context.Context, excludePatterns []string) (component.Packages, error) {
	manifests, err := w.members()
	if err != nil {
		return nil, err
	}

	pkgs := make(component.Packages, 0, len(manifests))

	for _, rel := range manifests {
		file, err := w.parse(rel)
		if err != nil {
			return nil, err
		}

		deps := make([]string, 0, len(file.Require))
		for _, req := range file.Require {
			deps = append(deps, req.Mod.Path)
		}

		dir := packageDir(rel)

		pkgs = append(pkgs, &component.Package{
			Name:          file.Module.Mod.Path,
			Path:          dir,
			ManifestPath:  rel,
			Version:       GoPlaceholderVersion,
			Ecosystem:     component.Go,
			AllDeps:       deps,
			IsPublishable: !isSample(dir) && !strings.Contains(file.Module.Mod.Path, "/internal/"),
		})
	}

	return w.filter(pkgs, excludePatterns)
}

// RewriteVersion does nothing: a module version is its VCS tag. It returns the placeholder version so
// callers can treat every ecosystem alike.
func (w *Go) RewriteVersion(_ context.Context, manifestPath, _ string, _ bool) (string, error) {
	w.logger.Debugf("Go module versions are VCS tags, leaving %s unchanged", manifestPath)
	return GoPlaceholderVersion, nil
}

// RewriteDependencyVersion bumps an existing require of dep to v<newVersion>. Modules that do not require dep
// are left alone.
func (w *Go) RewriteDependencyVersion(_ context.Context, manifestPath, dep, newVersion string, dryRun bool) error {
	file, err := w.parse(manifestPath)
	if err != nil {
		return err
	}

	version := "v" + strings.TrimPrefix(newVersion, "v")

	required := false

	for _, req := range file.Require {
		if req.Mod.Path == dep {
			required = req.Mod.Version != version
			break
		}
	}

	if !required {
		return nil
	}

	if err := file.AddRequire(dep, version); err != nil {
		return errors.Errorf("updating %s in %s: %w", dep, manifestPath, err)
	}

	file.Cleanup()

	contents, err := file.Format()
	if err != nil {
		return errors.New(err)
	}

	return w.write(manifestPath, string(contents), dryRun)
}
