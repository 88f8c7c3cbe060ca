package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/profilesync/pkg/config"
	"github.com/coolbeans/profilesync/pkg/document"
	"github.com/coolbeans/profilesync/pkg/extract"
	"github.com/coolbeans/profilesync/pkg/logging"
	"github.com/coolbeans/profilesync/pkg/metrics"
	"github.com/coolbeans/profilesync/pkg/pipeline"
	"github.com/coolbeans/profilesync/pkg/report"
	"github.com/coolbeans/profilesync/pkg/store"
)

var version = "0.1.0"

// Shared state set up by the root command
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "profilesync",
		Short: "Battle profile synchronizer",
		Long: `Profilesync reads plain-text transcriptions of battle profile documents
and keeps a unit record store in step with them.

For each configured faction it:
  - Locates the faction's section in a multi-faction document
  - Extracts unit point costs and battle formations
  - Updates stored unit points and replaces faction formation lists
  - Reports every point change for review`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Logging.Level = logLevel
			}
			cfg = loaded

			logger, err = logging.New(cfg.Logging)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "profilesync.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(segmentCmd())
	rootCmd.AddCommand(pagesCmd())
	rootCmd.AddCommand(exportCmd())

	return rootCmd
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}

			if err := config.DefaultConfig().Save(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing configuration file")

	return cmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Update the record store from the configured documents",
		Long: `Run every configured job: segment the faction's section, extract unit
points and battle formations, and reconcile them into the record store.

A faction whose title is missing from its document, or whose document does
not exist, is skipped with a warning; the remaining factions still run.

Example:
  profilesync sync
  profilesync sync --dry-run --format yaml
  profilesync sync --faction stormcast-eternals --metrics-file /var/lib/node_exporter/profilesync.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			format, _ := cmd.Flags().GetString("format")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			factions, _ := cmd.Flags().GetStringSlice("faction")
			backend, _ := cmd.Flags().GetString("store")

			if backend != "" {
				cfg.Store.Backend = backend
			}
			if metricsFile != "" {
				cfg.Metrics.Textfile = metricsFile
			}

			jobs := filterJobs(cfg.Jobs, factions)
			if len(jobs) == 0 {
				return fmt.Errorf("no jobs match %s", strings.Join(factions, ", "))
			}

			ctx := cmd.Context()
			recordStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer recordStore.Close()

			syncMetrics := metrics.New()
			runner := pipeline.NewRunner(cfg, recordStore, logger, syncMetrics)
			runner.DryRun = dryRun

			runReport, err := runner.Run(ctx, jobs)
			if runReport != nil {
				if writeErr := report.Write(cmd.OutOrStdout(), runReport, format); writeErr != nil {
					return writeErr
				}
			}
			if err != nil {
				return err
			}

			if cfg.Metrics.Textfile != "" {
				if err := syncMetrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					return err
				}
			}

			if runReport.Failed > 0 {
				return fmt.Errorf("%d of %d factions failed", runReport.Failed, runReport.Attempted)
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Report changes without writing to the record store")
	cmd.Flags().StringP("format", "f", report.FormatText, "Output format (text, json, yaml)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().StringSlice("faction", nil, "Only run jobs for these faction slugs")
	cmd.Flags().String("store", "", "Record store backend (json, sqlite)")

	return cmd
}

// extractResult is the output of the extract command.
type extractResult struct {
	Document   string                    `json:"document" yaml:"document"`
	Title      string                    `json:"title,omitempty" yaml:"title,omitempty"`
	Span       string                    `json:"span" yaml:"span"`
	Units      []unitRow                 `json:"units" yaml:"units"`
	Formations []extract.FormationRecord `json:"formations" yaml:"formations"`
}

type unitRow struct {
	Name   string `json:"name" yaml:"name"`
	Points int    `json:"points" yaml:"points"`
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "Print the unit points and formations found in a document",
		Long: `Extract unit points and battle formations from a document without
touching the record store. With --title only that faction's section is read.

Example:
  profilesync extract "Battle Profiles.txt" --title "STORMCAST ETERNALS"
  profilesync extract "Battle Profile - Flesh Eater Courts.txt" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			format, _ := cmd.Flags().GetString("format")

			doc, span, err := loadSpan(args[0], title)
			if err != nil {
				return err
			}

			spanLines := span.Lines(doc.Lines())
			result := extractResult{
				Document:   doc.Name,
				Title:      title,
				Span:       span.String(),
				Formations: extract.ExtractFormations(spanLines),
			}
			for name, points := range extract.ExtractUnitPoints(spanLines).All() {
				result.Units = append(result.Units, unitRow{Name: name, Points: points})
			}

			return writeExtractResult(cmd.OutOrStdout(), result, format)
		},
	}

	cmd.Flags().StringP("title", "t", "", "Faction title in the document (empty reads the whole document)")
	cmd.Flags().StringP("format", "f", report.FormatText, "Output format (text, json, yaml)")

	return cmd
}

func writeExtractResult(w io.Writer, result extractResult, format string) error {
	switch format {
	case report.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(result)
	case report.FormatYAML:
		return yaml.NewEncoder(w).Encode(result)
	case report.FormatText, "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	fmt.Fprintf(w, "%s (%s)\n", result.Document, result.Span)
	fmt.Fprintf(w, "\nUnits: %d\n", len(result.Units))
	for _, unit := range result.Units {
		fmt.Fprintf(w, "  %-40s %5d\n", unit.Name, unit.Points)
	}
	fmt.Fprintf(w, "\nBattle formations: %d\n", len(result.Formations))
	for _, formation := range result.Formations {
		fmt.Fprintf(w, "  %-30s %-30s %s\n", formation.ID, formation.Name, formation.Description)
	}
	return nil
}

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment <document> <title>",
		Short: "Show the section a faction title spans in a document",
		Long: `Locate a faction's section and print it with each line's classification,
which helps diagnose boundary detection when the document layout changes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")

			doc, span, err := loadSpan(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (%d lines)\n", args[1], span, span.Len())
			if !verbose {
				return nil
			}

			classifier := extract.NewClassifier(cfg.Vocabulary)
			lines := doc.Lines()
			for lineIndex := span.Start; lineIndex < span.End; lineIndex++ {
				kind := classifier.Classify(lines, lineIndex)
				fmt.Fprintf(out, "%6d  %-14s %s\n", lineIndex+1, kind, lines[lineIndex])
			}
			if span.End < len(lines) {
				fmt.Fprintf(out, "%6d  %-14s %s  <- stop\n", span.End+1, classifier.Classify(lines, span.End), lines[span.End])
			}
			return nil
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "Print every line of the section with its classification")

	return cmd
}

func pagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages <page-file>...",
		Short: "Join per-page text files into one document with page markers",
		Long: `Join page text files, in the order given, into a single document with a
"--- Page N ---" marker before each page. Blank pages keep their number.

Example:
  profilesync pages page-*.txt --output "Battle Profiles.txt"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			doc, err := document.LoadPages(filepath.Base(output), args)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), doc.Text())
				return err
			}
			if err := os.WriteFile(output, []byte(doc.Text()), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d pages (%d lines) to %s\n", len(args), doc.Len(), output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output document path (default stdout)")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the JSON record store into the SQLite backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = cfg.SQLitePath()
			}

			ctx := cmd.Context()
			source := store.NewJSONStore(cfg.UnitsDir(), cfg.FactionsPath())
			destination, err := store.OpenSQLiteStore(ctx, output)
			if err != nil {
				return err
			}
			defer destination.Close()

			skipped, err := store.Copy(ctx, source, destination)
			for _, recordError := range skipped {
				logger.Warn("skipping malformed unit record",
					zap.String(logging.FieldPath, recordError.Path),
					zap.Error(recordError.Err))
			}
			if err != nil {
				return err
			}

			slugs, err := destination.FactionSlugs(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d factions to %s (%d records skipped)\n", len(slugs), output, len(skipped))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "SQLite database path (default from config)")

	return cmd
}

// openStore opens the configured record store backend.
func openStore(ctx context.Context, settings *config.Config) (store.RecordStore, error) {
	switch settings.Store.Backend {
	case config.BackendSQLite:
		sqliteStore, err := store.OpenSQLiteStore(ctx, settings.SQLitePath())
		if err != nil {
			return nil, err
		}
		return sqliteStore, nil
	case config.BackendJSON, "":
		return store.NewJSONStore(settings.UnitsDir(), settings.FactionsPath()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", settings.Store.Backend)
	}
}

// loadSpan loads a document and locates the faction's section. An empty
// title selects the whole document.
func loadSpan(path, title string) (*document.Document, extract.Span, error) {
	doc, err := document.Load(path)
	if err != nil {
		return nil, extract.Span{}, err
	}

	lines := doc.Lines()
	if title == "" {
		return doc, extract.WholeDocument(lines), nil
	}

	segmenter := extract.NewSegmenter(extract.NewClassifier(cfg.Vocabulary))
	span, err := segmenter.Segment(lines, title)
	if err != nil {
		return nil, extract.Span{}, err
	}
	return doc, span, nil
}

// filterJobs keeps the jobs whose faction is listed. An empty list keeps
// every job.
func filterJobs(jobs []config.Job, factions []string) []config.Job {
	if len(factions) == 0 {
		return jobs
	}
	var filtered []config.Job
	for _, job := range jobs {
		for _, faction := range factions {
			if job.FactionSlug == faction {
				filtered = append(filtered, job)
				break
			}
		}
	}
	return filtered
}
