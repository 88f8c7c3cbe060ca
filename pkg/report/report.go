// Package report renders sync results for operators: a change log of
// point updates and a per-faction run summary, as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/profilesync/pkg/pipeline"
	"github.com/coolbeans/profilesync/pkg/reconcile"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Write renders a run report in the requested format.
func Write(w io.Writer, runReport *pipeline.Report, format string) error {
	var output string
	switch format {
	case FormatText, "":
		output = FormatRunReport(runReport)
	case FormatJSON:
		data, err := json.MarshalIndent(runReport, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		output = string(data) + "\n"
	case FormatYAML:
		data, err := yaml.Marshal(runReport)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		output = string(data)
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}

	_, err := io.WriteString(w, output)
	return err
}

// FormatChangeLog formats point changes as one line per unit:
// faction, unit, old points and new points.
func FormatChangeLog(changes []reconcile.Change) string {
	if len(changes) == 0 {
		return "No point changes.\n"
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%-24s %-36s %6s    %6s\n", "FACTION", "UNIT", "OLD", "NEW"))
	builder.WriteString(strings.Repeat("─", 80) + "\n")

	for _, change := range changes {
		unitName := change.UnitName
		if change.MatchKind != reconcile.MatchExact && change.MatchedName != "" {
			unitName = fmt.Sprintf("%s (as %s)", unitName, change.MatchedName)
		}
		unitName = truncate(unitName, 36)
		builder.WriteString(fmt.Sprintf("%-24s %-36s %6d -> %6d\n",
			change.Faction, unitName, change.OldPoints, change.NewPoints))
	}

	builder.WriteString(fmt.Sprintf("\nTotal: %d changes\n", len(changes)))
	return builder.String()
}

// truncate shortens text to at most width runes, marking the cut with "...".
func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-3]) + "..."
}

// FormatRunReport formats a run report for terminal output.
func FormatRunReport(runReport *pipeline.Report) string {
	var builder strings.Builder

	title := "Profile Sync Report"
	if runReport.DryRun {
		title += " (dry run)"
	}
	builder.WriteString("\n" + title + "\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", runReport.RunID))
	builder.WriteString(fmt.Sprintf("Attempted: %d | Updated: %d | Skipped: %d | Failed: %d\n",
		runReport.Attempted, runReport.Updated, runReport.Skipped, runReport.Failed))
	builder.WriteString(strings.Repeat("─", 60) + "\n")

	for _, faction := range runReport.Factions {
		builder.WriteString(formatFactionLine(faction) + "\n")
		for _, path := range faction.MalformedRecords {
			builder.WriteString(fmt.Sprintf("           malformed record skipped: %s\n", path))
		}
	}

	builder.WriteString("\n")
	builder.WriteString(FormatChangeLog(runReport.Changes()))
	return builder.String()
}

func formatFactionLine(faction pipeline.FactionResult) string {
	var status string
	switch faction.Outcome {
	case pipeline.OutcomeUpdated:
		status = "[OK]"
	case pipeline.OutcomeNotFound, pipeline.OutcomeMissingSource:
		status = "[SKIP]"
	default:
		status = "[FAIL]"
	}

	line := fmt.Sprintf("  %-8s %-24s", status, faction.Faction)
	if faction.Outcome == pipeline.OutcomeUpdated {
		line += fmt.Sprintf(" %s: %d units, %d formations; %d touched, %d changed",
			faction.Span, faction.UnitsExtracted, faction.FormationsExtracted,
			faction.UnitsTouched, len(faction.Changes))
		if faction.FormationsWritten > 0 {
			line += fmt.Sprintf(", %d formations written", faction.FormationsWritten)
		}
		if faction.MissingStoreEntry {
			line += " (no faction record, formations not written)"
		}
	}
	if faction.Error != "" {
		line += fmt.Sprintf(" error: %s", faction.Error)
	}
	return line
}
