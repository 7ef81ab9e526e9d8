package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gruntwork-io/releasekit/internal/runner/runnerpool"
)

var tableHeaders = []string{"PACKAGE", "STATUS", "DURATION", "DETAIL"}

// sorted returns the results ordered by name without modifying the input.
func sorted(results []*runnerpool.Result) []*runnerpool.Result {
	out := slices.Clone(results)
	slices.SortFunc(out, func(a, b *runnerpool.Result) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

func detail(res *runnerpool.Result) string {
	msg := res.Outcome.Message
	if res.Outcome.Hint != "" {
		msg += " (" + res.Outcome.Hint + ")"
	}

	return msg
}

// WriteTable writes the final per-package table.
func WriteTable(w io.Writer, results []*runnerpool.Result, shouldColor bool) error {
	if len(results) == 0 {
		return nil
	}

	results = sorted(results)

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			res.Name,
			res.Status().String(),
			res.Duration.Round(time.Millisecond).String(),
			detail(res),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(tableHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)

			if shouldColor && row == table.HeaderRow {
				return style.Bold(true)
			}

			if shouldColor && col == 1 && row >= 0 && row < len(results) {
				return style.Inherit(statusStyle(results[row].Status()))
			}

			return style
		})

	if !shouldColor {
		tbl = tbl.BorderStyle(lipgloss.NewStyle())
	}

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

func statusStyle(status runnerpool.Status) lipgloss.Style {
	colors := map[runnerpool.Status]string{
		runnerpool.StatusPassed:  "2",
		runnerpool.StatusFailed:  "1",
		runnerpool.StatusSkipped: "4",
		runnerpool.StatusError:   "5",
	}

	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colors[status]))
}

// WriteCSV writes one row per result, sorted by name.
func WriteCSV(w io.Writer, results []*runnerpool.Result) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write([]string{"Name", "Status", "Started", "DurationMs", "Message", "Hint"}); err != nil {
		return err
	}

	for _, res := range sorted(results) {
		started := ""
		if !res.Started.IsZero() {
			started = res.Started.UTC().Format(time.RFC3339)
		}

		if err := csvWriter.Write([]string{
			res.Name,
			res.Status().String(),
			started,
			strconv.FormatInt(res.Duration.Milliseconds(), 10),
			res.Outcome.Message,
			res.Outcome.Hint,
		}); err != nil {
			return err
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}
