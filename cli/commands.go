package cli

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/groups"
	"github.com/gruntwork-io/releasekit/internal/manifest"
	"github.com/gruntwork-io/releasekit/internal/release"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/versioning"
)

const (
	DiscoverCommandName = "discover"
	GraphCommandName    = "graph"
	PlanCommandName     = "plan"
	SnapshotCommandName = "snapshot"
	PrepareCommandName  = "prepare"
	PublishCommandName  = "publish"
	TagCommandName      = "tag"
)

// sharedFlags are accepted by every command.
func sharedFlags(opts *Options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			EnvVars:     []string{EnvPrefix + "CONFIG"},
			Usage:       "Path to releasekit.toml. Searched in the working directory and the repository root by default.",
			Destination: &opts.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "working-dir",
			EnvVars:     []string{EnvPrefix + "WORKING_DIR"},
			Usage:       "The directory to run releasekit in.",
			Destination: &opts.WorkingDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			EnvVars:     []string{EnvPrefix + "LOG_LEVEL"},
			Usage:       "Sets the logging level.",
			Value:       defaultLogLevel,
			Destination: &opts.LogLevel,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			EnvVars:     []string{EnvPrefix + "DRY_RUN"},
			Usage:       "Report what would happen without writing files, running publishers or calling APIs.",
			Destination: &opts.DryRun,
		},
		&cli.StringFlag{
			Name:        "group",
			EnvVars:     []string{EnvPrefix + "GROUP"},
			Usage:       "Limit the run to the packages of a configured group.",
			Destination: &opts.Group,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			EnvVars:     []string{EnvPrefix + "CONCURRENCY"},
			Usage:       "Maximum number of packages processed in parallel. Overrides the configuration.",
			Destination: &opts.Concurrency,
		},
		&cli.StringFlag{
			Name:        "manifest",
			EnvVars:     []string{EnvPrefix + "MANIFEST"},
			Usage:       "Path of the release manifest. Defaults to " + manifest.DefaultFileName + " at the workspace root.",
			Destination: &opts.ManifestPath,
		},
		&cli.BoolFlag{
			Name:        "fail-fast",
			EnvVars:     []string{EnvPrefix + "FAIL_FAST"},
			Usage:       "Stop scheduling new packages after the first failure.",
			Destination: &opts.FailFast,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			EnvVars:     []string{EnvPrefix + "NO_COLOR"},
			Usage:       "Disable color output.",
			Destination: &opts.NoColor,
		},
		&cli.StringFlag{
			Name:        "report",
			EnvVars:     []string{EnvPrefix + "REPORT"},
			Usage:       "Write the per-package results of the phase to this CSV file.",
			Destination: &opts.ReportFile,
		},
	}
}

func newCommands(opts *Options) []*cli.Command {
	commands := []*cli.Command{
		newDiscoverCommand(opts),
		newGraphCommand(opts),
		newPlanCommand(opts, false),
		newPlanCommand(opts, true),
		newPhaseCommand(opts, PrepareCommandName, "Rewrite manifest versions and refresh lock files from the release manifest.",
			(*release.Orchestrator).Prepare),
		newPhaseCommand(opts, PublishCommandName, "Build and publish the planned packages in dependency order.",
			(*release.Orchestrator).Publish),
		newPhaseCommand(opts, TagCommandName, "Create and push the release tags and forge releases.",
			(*release.Orchestrator).Tag),
	}

	for _, cmd := range commands {
		cmd.Flags = append(sharedFlags(opts), cmd.Flags...)
		cmd.Before = func(*cli.Context) error { return initialSetup(opts) }
	}

	return commands
}

func newDiscoverCommand(opts *Options) *cli.Command {
	return &cli.Command{
		Name:  DiscoverCommandName,
		Usage: "List the packages of every enabled ecosystem.",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}

			pkgs, err := rt.orchestrator.Discover(setupContext(c.Context, opts))
			if err != nil {
				return err
			}

			if pkgs, err = groups.Filter(pkgs, rt.cfg.Groups, opts.Group); err != nil {
				return err
			}

			return writePackages(opts.Writer, pkgs, opts.shouldColor())
		},
	}
}

func newGraphCommand(opts *Options) *cli.Command {
	var format string

	return &cli.Command{
		Name:  GraphCommandName,
		Usage: "Print the internal dependency graph as publish waves or in Graphviz format.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Output format: text or dot.",
				Value:       formatText,
				Destination: &format,
			},
		},
		Action: func(c *cli.Context) error {
			if format != formatText && format != formatDot {
				return errors.WithHint(errors.Errorf("unsupported graph format %q", format), "use --format text or --format dot")
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}

			pkgs, err := rt.orchestrator.Discover(setupContext(c.Context, opts))
			if err != nil {
				return err
			}

			g, err := selectGraph(pkgs, rt, opts.Group)
			if err != nil {
				return err
			}

			if format == formatDot {
				return writeDot(opts.Writer, g)
			}

			waves, err := g.Waves()
			if err != nil {
				return err
			}

			return writeWaves(opts.Writer, waves)
		},
	}
}

// selectGraph validates the full graph, then narrows it to a group.
func selectGraph(pkgs component.Packages, rt *runtime, group string) (*graph.Graph, error) {
	g := graph.Build(pkgs)
	if _, err := g.Validate(); err != nil {
		return nil, err
	}

	selected, err := groups.Filter(pkgs, rt.cfg.Groups, group)
	if err != nil {
		return nil, err
	}

	return g.Subgraph(selected.Names()), nil
}

func newPlanCommand(opts *Options, snapshot bool) *cli.Command {
	var force, prerelease, snapshotID string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "force",
			Usage:       "Minimum bump applied to every publishable package: patch, minor or major.",
			Destination: &force,
		},
		&cli.StringFlag{
			Name:        "prerelease",
			Usage:       "Prerelease label of the computed versions, e.g. rc.",
			Destination: &prerelease,
		},
	}

	name, usage := PlanCommandName, "Compute the next version of every package and write the release manifest."

	if snapshot {
		name, usage = SnapshotCommandName, "Plan snapshot versions that are published without tags."
		flags = append(flags, &cli.StringFlag{
			Name:        "snapshot-id",
			Usage:       "Identifier embedded in snapshot versions. Defaults to the short HEAD SHA.",
			Destination: &snapshotID,
		})
	}

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: flags,
		Action: func(c *cli.Context) error {
			planOpts := release.PlanOptions{
				Group:      opts.Group,
				Prerelease: prerelease,
				SnapshotID: snapshotID,
				Snapshot:   snapshot,
			}

			if force != "" {
				bump, err := versioning.ParseBump(force)
				if err != nil {
					return errors.New(err)
				}

				planOpts.Force = bump
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}

			plan, err := rt.orchestrator.Plan(setupContext(c.Context, opts), planOpts)
			if err != nil {
				return err
			}

			if err := writeVersions(opts.Writer, plan.Manifest.Packages, opts.shouldColor()); err != nil {
				return err
			}

			if opts.DryRun {
				opts.Logger.Infof("Dry run, the release manifest was not written")
				return nil
			}

			path := rt.manifestPath(opts)
			if err := plan.Manifest.Save(path); err != nil {
				return err
			}

			opts.Logger.Infof("Wrote release manifest %s", path)

			return nil
		},
	}
}

type phaseFunc func(o *release.Orchestrator, ctx context.Context, m *manifest.ReleaseManifest, dryRun bool) ([]*runnerpool.Result, error)

// newPhaseCommand builds a command that runs one manifest driven phase and reports its results.
func newPhaseCommand(opts *Options, name, usage string, run phaseFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}

			path := rt.manifestPath(opts)

			releaseManifest, err := manifest.Load(path)
			if err != nil {
				return errors.WithHint(err, "run `releasekit plan` first to write "+path)
			}

			results, err := run(rt.orchestrator, setupContext(c.Context, opts), releaseManifest, opts.DryRun)
			if err != nil {
				return err
			}

			return writeResults(opts, name, results)
		},
	}
}
