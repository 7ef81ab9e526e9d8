package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/graph"
	"github.com/gruntwork-io/releasekit/internal/report"
	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
	"github.com/gruntwork-io/releasekit/internal/versioning"
)

const (
	formatText = "text"
	formatDot  = "dot"
)

func (opts *Options) shouldColor() bool {
	return !opts.NoColor && report.ShouldColor(opts.Writer)
}

func writeTable(w io.Writer, headers []string, rows [][]string, shouldColor bool) error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if shouldColor && row == table.HeaderRow {
				return style.Bold(true)
			}

			return style
		})

	if !shouldColor {
		tbl = tbl.BorderStyle(lipgloss.NewStyle())
	}

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

func writePackages(w io.Writer, pkgs component.Packages, shouldColor bool) error {
	if len(pkgs) == 0 {
		_, err := fmt.Fprintln(w, "No packages found.")
		return err
	}

	rows := make([][]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		rows = append(rows, []string{
			pkg.Name,
			string(pkg.Ecosystem),
			pkg.Version,
			pkg.Path,
			strconv.FormatBool(pkg.IsPublishable),
		})
	}

	return writeTable(w, []string{"PACKAGE", "ECOSYSTEM", "VERSION", "PATH", "PUBLISHABLE"}, rows, shouldColor)
}

func writeVersions(w io.Writer, versions []versioning.PackageVersion, shouldColor bool) error {
	rows := make([][]string, 0, len(versions))
	for _, pv := range versions {
		rows = append(rows, []string{pv.Name, pv.OldVersion, pv.NewVersion, pv.Bump.String(), pv.Tag, pv.Reason})
	}

	return writeTable(w, []string{"PACKAGE", "CURRENT", "NEXT", "BUMP", "TAG", "REASON"}, rows, shouldColor)
}

// writeWaves prints one line per publish wave.
func writeWaves(w io.Writer, waves [][]string) error {
	for i, wave := range waves {
		if _, err := fmt.Fprintf(w, "wave %d: %s\n", i+1, strings.Join(wave, ", ")); err != nil {
			return err
		}
	}

	return nil
}

// writeDot prints the graph in Graphviz format with an edge from every dependent to its dependency.
func writeDot(w io.Writer, g *graph.Graph) error {
	var sb strings.Builder

	sb.WriteString("digraph releasekit {\n")

	for _, name := range g.Names() {
		fmt.Fprintf(&sb, "  %q;\n", name)

		for _, dep := range g.Dependencies(name) {
			fmt.Fprintf(&sb, "  %q -> %q;\n", name, dep)
		}
	}

	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())

	return err
}

// writeResults prints the per-unit table and the summary, exports the CSV report if requested, and
// returns an error carrying the exit code when a unit did not succeed.
func writeResults(opts *Options, phase string, results []*runnerpool.Result) error {
	shouldColor := opts.shouldColor()

	if err := report.WriteTable(opts.Writer, results, shouldColor); err != nil {
		return errors.New(err)
	}

	summary := report.Summarize(results)
	if err := summary.Write(opts.Writer, report.NewColorizer(shouldColor)); err != nil {
		return errors.New(err)
	}

	if opts.ReportFile != "" {
		if err := writeReportFile(opts.ReportFile, results); err != nil {
			return err
		}
	}

	if code := summary.ExitCode(); code != report.ExitOK {
		return errors.ErrorWithExitCode{
			Err:      errors.Errorf("%s finished with %d failed and %d errored units", phase, summary.Failed, summary.Errors),
			ExitCode: code,
		}
	}

	return nil
}

func writeReportFile(path string, results []*runnerpool.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Errorf("creating report %s: %w", path, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.New(closeErr)
		}
	}()

	return report.WriteCSV(file, results)
}
