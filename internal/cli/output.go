package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"devsetup/internal/installer"
	"devsetup/internal/progress"
	"devsetup/internal/provision"
	"devsetup/internal/tui"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func writeSummaryTable(w io.Writer, results []installer.Result) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSTATUS\tVERSION\tTIME\tNOTES")
	for _, res := range results {
		row := tui.ResultRow(res)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4])
	}
	tw.Flush()
}

func printSummary(w io.Writer, s provision.Summary) {
	prefix := ""
	if s.DryRun {
		prefix = "[dry-run] "
	}
	fmt.Fprintf(w, "%sInstalled: %d, Present: %d, Skipped: %d, Would install: %d, Failed: %d (%s)\n",
		prefix,
		s.Count(installer.StatusInstalled),
		s.Count(installer.StatusPresent),
		s.Count(installer.StatusSkipped),
		s.Count(installer.StatusWouldInstall),
		s.Count(installer.StatusFailed),
		progress.FormatDuration(s.Elapsed),
	)
}

func writeFailures(w io.Writer, results []installer.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failures:")
	for _, res := range results {
		if !res.Failed() {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", res.Component, res.Error)
	}
}
