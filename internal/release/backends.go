package release

import (
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/pkgmanager"
	"github.com/gruntwork-io/releasekit/internal/registry"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/workspace"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// DefaultTable registers the production backends of every enabled ecosystem that has a workspace
// under root.
func DefaultTable(l log.Logger, runner *shell.Runner, root string, cfg *config.Config) (backend.Table, error) {
	var sets []*backend.Set

	for _, eco := range cfg.EnabledEcosystems() {
		if !workspace.Detect(eco, root) {
			l.Debugf("No %s workspace found in %s", eco, root)
			continue
		}

		set, err := newSet(l, runner, root, eco)
		if err != nil {
			return nil, err
		}

		set.RequiredEnv = cfg.RequiredEnv(eco)
		sets = append(sets, set)
	}

	return backend.NewTable(sets...), nil
}

func newSet(l log.Logger, runner *shell.Runner, root string, eco component.Ecosystem) (*backend.Set, error) {
	ws, err := workspace.New(l, eco, root)
	if err != nil {
		return nil, err
	}

	set := &backend.Set{Workspace: ws}

	switch eco {
	case component.Python:
		set.PackageManager, set.Registry = pkgmanager.NewUV(runner, root), registry.NewPyPI(l)
	case component.Go:
		set.PackageManager, set.Registry = pkgmanager.NewGo(runner, root), registry.NewGoProxy(l)
	case component.Rust:
		set.PackageManager, set.Registry = pkgmanager.NewCargo(runner, root), registry.NewCrates(l, runner)
	case component.JS:
		set.PackageManager, set.Registry = pkgmanager.NewPNPM(runner, root), registry.NewNPM(l, runner)
	case component.Dart:
		set.PackageManager, set.Registry = pkgmanager.NewDart(runner, root), registry.NewPubDev(l)
	case component.Java:
		set.PackageManager, set.Registry = pkgmanager.NewMaven(runner, root), registry.NewMavenCentral(l)
	case component.Kotlin:
		set.PackageManager, set.Registry = pkgmanager.NewGradle(runner, root), registry.NewMavenCentral(l)
	}

	return set, nil
}
