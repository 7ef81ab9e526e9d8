// Package cli is the releasekit command line, built on urfave/cli.
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/config"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/forge"
	"github.com/gruntwork-io/releasekit/internal/git"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/release"
	"github.com/gruntwork-io/releasekit/internal/report"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// NewApp creates the releasekit CLI app.
func NewApp(opts *Options) *cli.App {
	return &cli.App{
		Name:      AppName,
		Usage:     "Release the packages of a polyglot monorepo in dependency order.",
		UsageText: AppName + " <command> [options]",
		Version:   Version,
		Writer:    opts.Writer,
		ErrWriter: opts.ErrWriter,
		Commands:  newCommands(opts),
		// Errors are reported by the caller, which also picks the exit code.
		ExitErrHandler:  func(*cli.Context, error) {},
		HideHelpCommand: true,
	}
}

// initialSetup applies the common flags. It runs before every command.
func initialSetup(opts *Options) error {
	if err := opts.Logger.SetLevel(opts.LogLevel); err != nil {
		return errors.WithHint(err, "use one of "+log.AllLevels.String())
	}

	for _, path := range []*string{&opts.ConfigPath, &opts.WorkingDir, &opts.ManifestPath, &opts.ReportFile} {
		expanded, err := homedir.Expand(*path)
		if err != nil {
			return errors.New(err)
		}

		*path = expanded
	}

	if opts.WorkingDir == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return errors.New(err)
		}

		opts.WorkingDir = currentDir
	}

	workDir, err := filepath.Abs(opts.WorkingDir)
	if err != nil {
		return errors.New(err)
	}

	opts.WorkingDir = workDir

	if opts.ConfigPath == "" {
		if opts.ConfigPath, err = config.FindConfigFile(opts.Logger, opts.WorkingDir); err != nil {
			return err
		}
	}

	return nil
}

// runtime holds the collaborators built for one command.
type runtime struct {
	cfg          *config.Config
	orchestrator *release.Orchestrator
	root         string
}

func newRuntime(opts *Options) (*runtime, error) {
	l := opts.Logger

	cfg, err := config.Load(l, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}

	if opts.FailFast {
		cfg.FailFast = true
	}

	root := workspaceRoot(opts)
	runner := shell.NewRunner(l)

	table, err := release.DefaultTable(l, runner, root, cfg)
	if err != nil {
		return nil, err
	}

	if len(table) == 0 {
		l.Warnf("No supported workspace found in %s", root)
	}

	forgeBackend, err := newForge(l, cfg)
	if err != nil {
		return nil, err
	}

	orchestrator := release.New(l, release.Options{
		Table:  table,
		VCS:    git.NewRepository(l, runner, root),
		Forge:  forgeBackend,
		Config: cfg,
		Runner: runner,
		Root:   root,
		Progress: func(phase string, total int) runnerpool.Observer {
			return report.NewProgress(opts.Writer, phase, total)
		},
	})

	return &runtime{cfg: cfg, orchestrator: orchestrator, root: root}, nil
}

// workspaceRoot is the directory of the config file, else the repository root, else the working directory.
func workspaceRoot(opts *Options) string {
	if opts.ConfigPath != "" {
		dir := filepath.Dir(opts.ConfigPath)
		if filepath.Base(dir) == ".config" {
			dir = filepath.Dir(dir)
		}

		return dir
	}

	if repoRoot := config.FindRepoRoot(opts.WorkingDir); repoRoot != "" {
		return repoRoot
	}

	return opts.WorkingDir
}

// newForge returns nil when no repository is configured.
func newForge(l log.Logger, cfg *config.Config) (backend.Forge, error) {
	if cfg.Forge.Repo == "" {
		l.Debugf("No forge repository configured, releases will only be tagged")
		return nil, nil
	}

	tokenEnv := cfg.Forge.TokenEnv
	if tokenEnv == "" {
		tokenEnv = forge.TokenEnvFor(cfg.Forge.Kind)
	}

	return forge.New(l, forge.Options{
		Kind:     cfg.Forge.Kind,
		Repo:     cfg.Forge.Repo,
		Token:    os.Getenv(tokenEnv),
		TokenEnv: tokenEnv,
		BaseURL:  cfg.Forge.BaseURL,
	})
}

func (rt *runtime) manifestPath(opts *Options) string {
	if opts.ManifestPath != "" {
		return opts.ManifestPath
	}

	return filepath.Join(rt.root, manifest.DefaultFileName)
}

// setupContext stashes the logger in the command context.
func setupContext(ctx context.Context, opts *Options) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return log.ContextWithLogger(ctx, opts.Logger)
}
