// Package pipeline runs the batch sync: for each job it segments the
// faction's section out of its document, extracts unit points and battle
// formations, reconciles them into the record store, and reports what
// changed. Each job is processed to completion before the next begins and
// no job's failure stops the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coolbeans/profilesync/pkg/config"
	"github.com/coolbeans/profilesync/pkg/document"
	"github.com/coolbeans/profilesync/pkg/extract"
	"github.com/coolbeans/profilesync/pkg/logging"
	"github.com/coolbeans/profilesync/pkg/metrics"
	"github.com/coolbeans/profilesync/pkg/reconcile"
	"github.com/coolbeans/profilesync/pkg/store"
)

// Outcome classifies how a job ended.
type Outcome string

const (
	OutcomeUpdated       Outcome = "updated"
	OutcomeNotFound      Outcome = "skipped-not-found"
	OutcomeMissingSource Outcome = "skipped-missing-source"
	OutcomeFailed        Outcome = "failed"
)

// Skipped reports whether the outcome is one of the skip outcomes.
func (o Outcome) Skipped() bool {
	return o == OutcomeNotFound || o == OutcomeMissingSource
}

// FactionResult describes one processed job.
type FactionResult struct {
	Faction  string  `json:"faction" yaml:"faction"`
	Document string  `json:"document" yaml:"document"`
	Title    string  `json:"title,omitempty" yaml:"title,omitempty"`
	Outcome  Outcome `json:"outcome" yaml:"outcome"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`

	Span                string `json:"span,omitempty" yaml:"span,omitempty"`
	LinesScanned        int    `json:"lines_scanned" yaml:"lines_scanned"`
	UnitsExtracted      int    `json:"units_extracted" yaml:"units_extracted"`
	FormationsExtracted int    `json:"formations_extracted" yaml:"formations_extracted"`

	UnitsTouched      int      `json:"units_touched" yaml:"units_touched"`
	UnitsUnmatched    int      `json:"units_unmatched" yaml:"units_unmatched"`
	FormationsWritten int      `json:"formations_written" yaml:"formations_written"`
	MissingStoreEntry bool     `json:"missing_store_entry,omitempty" yaml:"missing_store_entry,omitempty"`
	MalformedRecords  []string `json:"malformed_records,omitempty" yaml:"malformed_records,omitempty"`

	// UnitsSaved lists the ids of unit records written, in write order. When
	// a save fails partway the outcome is failed and this holds the units
	// already written; rerunning the job is safe because point updates are
	// idempotent.
	UnitsSaved []string `json:"units_saved,omitempty" yaml:"units_saved,omitempty"`

	Changes  []reconcile.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Duration time.Duration      `json:"duration" yaml:"duration"`
}

// Report is the result of one sync run.
type Report struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	DryRun     bool            `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Attempted  int             `json:"attempted" yaml:"attempted"`
	Updated    int             `json:"updated" yaml:"updated"`
	Skipped    int             `json:"skipped" yaml:"skipped"`
	Failed     int             `json:"failed" yaml:"failed"`
	Factions   []FactionResult `json:"factions" yaml:"factions"`
}

// Changes returns the change log across all factions, in job order.
func (r *Report) Changes() []reconcile.Change {
	var changes []reconcile.Change
	for _, faction := range r.Factions {
		changes = append(changes, faction.Changes...)
	}
	return changes
}

func (r *Report) add(result FactionResult) {
	r.Attempted++
	switch {
	case result.Outcome == OutcomeUpdated:
		r.Updated++
	case result.Outcome.Skipped():
		r.Skipped++
	default:
		r.Failed++
	}
	r.Factions = append(r.Factions, result)
}

// Runner executes sync jobs against a record store.
type Runner struct {
	cfg       *config.Config
	store     store.RecordStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	segmenter *extract.Segmenter

	// DryRun disables all store writes.
	DryRun bool
}

// NewRunner creates a Runner. A nil logger discards logs and nil metrics
// are not recorded.
func NewRunner(cfg *config.Config, recordStore store.RecordStore, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		store:     recordStore,
		logger:    logger.Named("pipeline"),
		metrics:   m,
		segmenter: extract.NewSegmenter(extract.NewClassifier(cfg.Vocabulary)),
	}
}

// Run processes jobs in order and returns the run report. The error is
// non-nil only when the context is cancelled between jobs; the report
// then covers the jobs that completed.
func (r *Runner) Run(ctx context.Context, jobs []config.Job) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    r.DryRun,
		StartedAt: time.Now(),
	}
	runLogger := r.logger.With(zap.String(logging.FieldRunID, report.RunID))
	runLogger.Info("sync started", zap.Int("jobs", len(jobs)), zap.Bool("dry_run", r.DryRun))

	documents := newDocumentCache()

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, fmt.Errorf("sync interrupted: %w", err)
		}

		jobStart := time.Now()
		result := r.runJob(ctx, runLogger, documents, job)
		result.Duration = time.Since(jobStart)
		report.add(result)

		if r.metrics != nil {
			r.metrics.RecordOutcome(string(result.Outcome))
		}
	}

	report.FinishedAt = time.Now()
	if r.metrics != nil {
		r.metrics.RecordRun(report.FinishedAt.Sub(report.StartedAt), report.FinishedAt)
	}

	runLogger.Info("sync finished",
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("changes", len(report.Changes())))

	return report, nil
}

// runJob processes one faction. Every early return leaves the store
// untouched for that faction.
func (r *Runner) runJob(ctx context.Context, runLogger *zap.Logger, documents *documentCache, job config.Job) FactionResult {
	documentPath := r.cfg.DocumentPath(job.Document)
	result := FactionResult{
		Faction:  job.FactionSlug,
		Document: job.Document,
		Title:    job.Title(),
	}
	jobLogger := runLogger.With(
		zap.String(logging.FieldFaction, job.FactionSlug),
		zap.String(logging.FieldDocument, documentPath))

	doc, err := documents.load(documentPath)
	if err != nil {
		result.Error = err.Error()
		if errors.Is(err, document.ErrMissingSource) {
			jobLogger.Warn("source document missing, skipping faction")
			result.Outcome = OutcomeMissingSource
			return result
		}
		jobLogger.Error("failed to load document", zap.Error(err))
		result.Outcome = OutcomeFailed
		return result
	}

	lines := doc.Lines()
	span := extract.WholeDocument(lines)
	if !job.WholeDocument() {
		span, err = r.segmenter.Segment(lines, job.Title())
		if err != nil {
			result.Error = err.Error()
			if errors.Is(err, extract.ErrFactionNotFound) {
				jobLogger.Warn("faction title not found in document, skipping faction",
					zap.String("title", job.Title()))
				result.Outcome = OutcomeNotFound
				return result
			}
			result.Outcome = OutcomeFailed
			return result
		}
	}
	result.Span = span.String()

	spanLines := span.Lines(lines)
	table := extract.ExtractUnitPoints(spanLines)
	formations := extract.ExtractFormations(spanLines)
	result.LinesScanned = len(spanLines)
	result.UnitsExtracted = table.Len()
	result.FormationsExtracted = len(formations)
	if r.metrics != nil {
		r.metrics.RecordExtraction(job.FactionSlug, result.LinesScanned, result.UnitsExtracted, result.FormationsExtracted)
	}
	jobLogger.Debug("extracted records",
		zap.String("span", result.Span),
		zap.Int("units", result.UnitsExtracted),
		zap.Int("formations", result.FormationsExtracted))

	reconciler := reconcile.New(reconcile.Options{
		DefaultProfile:    r.cfg.Reconcile.DefaultProfile.BattleProfile(),
		SubstringMatching: r.cfg.Reconcile.SubstringMatching,
		Aliases:           r.cfg.Reconcile.AliasesFor(job.FactionSlug),
	})

	if err := r.syncUnits(ctx, jobLogger, reconciler, table, &result); err != nil {
		result.Error = err.Error()
		result.Outcome = OutcomeFailed
		return result
	}

	if err := r.syncFormations(ctx, jobLogger, reconciler, formations, &result); err != nil {
		result.Error = err.Error()
		result.Outcome = OutcomeFailed
		return result
	}

	if r.metrics != nil {
		r.metrics.RecordReconcile(job.FactionSlug, result.UnitsTouched, len(result.Changes), result.FormationsWritten)
	}

	result.Outcome = OutcomeUpdated
	return result
}

// syncUnits reconciles the faction's stored units with the extracted point
// table and writes every matched unit back. It stops at the first failed
// write; result.UnitsSaved records what was written before it.
func (r *Runner) syncUnits(ctx context.Context, jobLogger *zap.Logger, reconciler *reconcile.Reconciler, table *extract.PointTable, result *FactionResult) error {
	units, recordErrors, err := r.store.Units(ctx, result.Faction)
	if err != nil {
		if errors.Is(err, store.ErrUnitsNotFound) {
			jobLogger.Warn("faction has no unit records")
			return nil
		}
		return fmt.Errorf("failed to load units: %w", err)
	}

	for _, recordError := range recordErrors {
		jobLogger.Warn("skipping malformed unit record",
			zap.String(logging.FieldPath, recordError.Path),
			zap.Error(recordError.Err))
		result.MalformedRecords = append(result.MalformedRecords, recordError.Path)
	}
	if r.metrics != nil && len(recordErrors) > 0 {
		r.metrics.RecordMalformed(len(recordErrors))
	}

	unitResult := reconciler.ReconcileUnits(result.Faction, units, table)
	result.UnitsTouched = len(unitResult.Touched)
	result.UnitsUnmatched = len(unitResult.Unmatched)
	result.Changes = unitResult.Changes

	for _, change := range unitResult.Changes {
		jobLogger.Info("unit points changed",
			zap.String(logging.FieldUnit, change.UnitName),
			zap.Int(logging.FieldOldPoints, change.OldPoints),
			zap.Int(logging.FieldNewPoints, change.NewPoints),
			zap.String("match", string(change.MatchKind)))
	}

	if r.DryRun {
		return nil
	}

	for _, unit := range unitResult.Touched {
		if err := r.store.SaveUnit(ctx, result.Faction, unit); err != nil {
			jobLogger.Error("unit save failed, earlier units were written",
				zap.String(logging.FieldUnit, unit.ID),
				zap.Strings("units_saved", result.UnitsSaved),
				zap.Error(err))
			return fmt.Errorf("failed to save unit %s: %w", unit.ID, err)
		}
		result.UnitsSaved = append(result.UnitsSaved, unit.ID)
	}
	return nil
}

// syncFormations replaces the faction's formation list. Nothing is written
// when no formation was extracted.
func (r *Runner) syncFormations(ctx context.Context, jobLogger *zap.Logger, reconciler *reconcile.Reconciler, formations []extract.FormationRecord, result *FactionResult) error {
	if len(formations) == 0 {
		return nil
	}

	faction, err := r.store.Faction(ctx, result.Faction)
	if err != nil {
		if errors.Is(err, store.ErrFactionNotFound) {
			jobLogger.Warn("faction missing from record store, skipping formations")
			result.MissingStoreEntry = true
			return nil
		}
		return fmt.Errorf("failed to load faction: %w", err)
	}

	updated := reconciler.ReconcileFormations(faction, formations)
	if r.DryRun {
		return nil
	}

	if err := r.store.SaveFaction(ctx, updated); err != nil {
		if errors.Is(err, store.ErrFactionNotFound) {
			jobLogger.Warn("faction missing from record store, skipping formations")
			result.MissingStoreEntry = true
			return nil
		}
		return fmt.Errorf("failed to save faction: %w", err)
	}

	result.FormationsWritten = len(updated.BattleFormations)
	jobLogger.Info("battle formations replaced", zap.Int("formations", result.FormationsWritten))
	return nil
}

// documentCache loads each document once per run; several factions
// commonly share one file.
type documentCache struct {
	documents map[string]*document.Document
	errs      map[string]error
}

func newDocumentCache() *documentCache {
	return &documentCache{
		documents: make(map[string]*document.Document),
		errs:      make(map[string]error),
	}
}

func (c *documentCache) load(path string) (*document.Document, error) {
	if doc, ok := c.documents[path]; ok {
		return doc, nil
	}
	if err, ok := c.errs[path]; ok {
		return nil, err
	}

	doc, err := document.Load(path)
	if err != nil {
		c.errs[path] = err
		return nil, err
	}
	c.documents[path] = doc
	return doc, nil
}
