// Package metrics provides Prometheus metrics for sync runs. A batch run
// is short lived, so metrics are exported through a node_exporter textfile
// rather than served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a profilesync process.
type Metrics struct {
	registry *prometheus.Registry

	// Per-faction outcomes
	FactionsTotal *prometheus.CounterVec

	// Extraction metrics
	LinesScannedTotal        *prometheus.CounterVec
	UnitsExtractedTotal      *prometheus.CounterVec
	FormationsExtractedTotal *prometheus.CounterVec

	// Reconciliation metrics
	UnitsTouchedTotal      *prometheus.CounterVec
	PointChangesTotal      *prometheus.CounterVec
	FormationsWrittenTotal *prometheus.CounterVec
	MalformedRecordsTotal  prometheus.Counter

	// Run metrics
	RunDurationSeconds prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
}

// New creates all metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.FactionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_factions_total",
			Help: "Total number of faction jobs processed, by outcome",
		},
		[]string{"outcome"},
	)

	m.LinesScannedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_lines_scanned_total",
			Help: "Total number of document lines in extracted faction spans",
		},
		[]string{"faction"},
	)

	m.UnitsExtractedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_units_extracted_total",
			Help: "Total number of distinct unit point rows extracted",
		},
		[]string{"faction"},
	)

	m.FormationsExtractedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_formations_extracted_total",
			Help: "Total number of battle formations extracted",
		},
		[]string{"faction"},
	)

	m.UnitsTouchedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_units_touched_total",
			Help: "Total number of stored units matched to an extracted row",
		},
		[]string{"faction"},
	)

	m.PointChangesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_point_changes_total",
			Help: "Total number of stored point values that changed",
		},
		[]string{"faction"},
	)

	m.FormationsWrittenTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profilesync_formations_written_total",
			Help: "Total number of battle formations written to faction records",
		},
		[]string{"faction"},
	)

	m.MalformedRecordsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "profilesync_malformed_records_total",
			Help: "Total number of stored records skipped because they could not be decoded",
		},
	)

	m.RunDurationSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "profilesync_run_duration_seconds",
			Help: "Duration of the last sync run in seconds",
		},
	)

	m.LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "profilesync_last_run_timestamp_seconds",
			Help: "Unix time at which the last sync run finished",
		},
	)

	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOutcome counts one processed faction job.
func (m *Metrics) RecordOutcome(outcome string) {
	m.FactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordExtraction records the size of one faction's span and what was
// extracted from it.
func (m *Metrics) RecordExtraction(faction string, lines, units, formations int) {
	m.LinesScannedTotal.WithLabelValues(faction).Add(float64(lines))
	m.UnitsExtractedTotal.WithLabelValues(faction).Add(float64(units))
	m.FormationsExtractedTotal.WithLabelValues(faction).Add(float64(formations))
}

// RecordReconcile records what was written back for one faction.
func (m *Metrics) RecordReconcile(faction string, touched, changes, formationsWritten int) {
	m.UnitsTouchedTotal.WithLabelValues(faction).Add(float64(touched))
	m.PointChangesTotal.WithLabelValues(faction).Add(float64(changes))
	m.FormationsWrittenTotal.WithLabelValues(faction).Add(float64(formationsWritten))
}

// RecordMalformed counts skipped malformed records.
func (m *Metrics) RecordMalformed(count int) {
	m.MalformedRecordsTotal.Add(float64(count))
}

// RecordRun sets the run gauges.
func (m *Metrics) RecordRun(duration time.Duration, finished time.Time) {
	m.RunDurationSeconds.Set(duration.Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
