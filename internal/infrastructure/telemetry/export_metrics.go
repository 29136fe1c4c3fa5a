// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ExportMetrics provides business metrics for the export pipeline.
// It tracks job submissions, poll outcomes, and ingested record volume.
type ExportMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	jobSubmittedTotal   *Counter
	jobCompletedTotal   *Counter
	jobFailedTotal      *Counter
	recordIngestedTotal *Counter
	recordSkippedTotal  *Counter

	// Histogram metrics
	pollDuration   *Histogram
	ingestDuration *Histogram

	// Gauge metrics (point-in-time values)
	activeJobCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	jobProvider JobMetricsProvider
}

// JobMetricsProvider provides export job state for periodic metrics collection.
// This interface allows the telemetry layer to query job counts without
// depending on the export domain directly.
type JobMetricsProvider interface {
	// GetActiveJobCounts returns the number of in-flight jobs per entity kind
	GetActiveJobCounts(ctx context.Context) (map[string]int64, error)
}

// ExportMetricsConfig holds configuration for export metrics.
type ExportMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	JobProvider     JobMetricsProvider
}

// NewExportMetrics creates a new ExportMetrics instance.
func NewExportMetrics(cfg ExportMetricsConfig) (*ExportMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	em := &ExportMetrics{
		meter:       cfg.Meter,
		logger:      logger,
		stopChan:    make(chan struct{}),
		jobProvider: cfg.JobProvider,
	}

	var err error

	// Job lifecycle metrics
	em.jobSubmittedTotal, err = NewCounter(
		cfg.Meter,
		"export_job_submitted_total",
		"Total number of bulk export jobs submitted to the platform",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	em.jobCompletedTotal, err = NewCounter(
		cfg.Meter,
		"export_job_completed_total",
		"Total number of bulk export jobs fully ingested",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	em.jobFailedTotal, err = NewCounter(
		cfg.Meter,
		"export_job_failed_total",
		"Total number of bulk export jobs that ended in failure",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	// Ingest volume metrics
	em.recordIngestedTotal, err = NewCounter(
		cfg.Meter,
		"export_record_ingested_total",
		"Total number of result records merged into local storage",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	em.recordSkippedTotal, err = NewCounter(
		cfg.Meter,
		"export_record_skipped_total",
		"Total number of malformed result lines skipped during ingest",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	// Duration metrics
	em.pollDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "export_poll_duration_seconds",
		Description: "Duration of a single status poll round-trip",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	em.ingestDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "export_ingest_duration_seconds",
		Description: "Duration of a full result download and merge",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	if err != nil {
		return nil, err
	}

	// Gauge metrics
	em.activeJobCount, err = NewGauge(
		cfg.Meter,
		"export_job_active_count",
		"Number of jobs currently awaiting platform completion",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	return em, nil
}

// =============================================================================
// Job Lifecycle Metrics
// =============================================================================

// RecordJobSubmitted records a successful submission to the platform.
func (em *ExportMetrics) RecordJobSubmitted(ctx context.Context, shopID uuid.UUID, kind string) {
	em.jobSubmittedTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrExportKind.String(kind),
	)
}

// RecordJobCompleted records a job whose result was fully ingested.
func (em *ExportMetrics) RecordJobCompleted(ctx context.Context, shopID uuid.UUID, kind string) {
	em.jobCompletedTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrExportKind.String(kind),
	)
}

// RecordJobFailed records a terminal job failure with the platform's failure code.
func (em *ExportMetrics) RecordJobFailed(ctx context.Context, shopID uuid.UUID, kind, failureCode string) {
	em.jobFailedTotal.Inc(ctx,
		AttrShopID.String(shopID.String()),
		AttrExportKind.String(kind),
		AttrFailureCode.String(failureCode),
	)
}

// =============================================================================
// Ingest Metrics
// =============================================================================

// RecordIngestedRecords records the number of result records merged for a job.
func (em *ExportMetrics) RecordIngestedRecords(ctx context.Context, shopID uuid.UUID, kind string, count int64) {
	em.recordIngestedTotal.Add(ctx, count,
		AttrShopID.String(shopID.String()),
		AttrExportKind.String(kind),
	)
}

// RecordSkippedRecords records malformed lines skipped during ingest.
func (em *ExportMetrics) RecordSkippedRecords(ctx context.Context, shopID uuid.UUID, kind string, count int64) {
	if count == 0 {
		return
	}
	em.recordSkippedTotal.Add(ctx, count,
		AttrShopID.String(shopID.String()),
		AttrExportKind.String(kind),
	)
}

// RecordPollDuration records the duration of a status poll round-trip.
func (em *ExportMetrics) RecordPollDuration(ctx context.Context, kind string, d time.Duration) {
	em.pollDuration.RecordDuration(ctx, d,
		AttrExportKind.String(kind),
	)
}

// RecordIngestDuration records the duration of a result download and merge.
func (em *ExportMetrics) RecordIngestDuration(ctx context.Context, kind string, d time.Duration) {
	em.ingestDuration.RecordDuration(ctx, d,
		AttrExportKind.String(kind),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects active job counts every interval (default: 1 minute).
// This is non-blocking - use Stop() to stop collection.
func (em *ExportMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	em.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go em.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (em *ExportMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	em.collectJobMetrics(ctx)

	for {
		select {
		case <-em.stopChan:
			em.logger.Info("Stopping periodic export metrics collection")
			return
		case <-ctx.Done():
			em.logger.Info("Context cancelled, stopping periodic export metrics collection")
			return
		case <-ticker.C:
			em.collectJobMetrics(ctx)
		}
	}
}

// collectJobMetrics collects the active job count gauge per entity kind.
func (em *ExportMetrics) collectJobMetrics(ctx context.Context) {
	if em.jobProvider == nil {
		em.logger.Debug("No job provider configured, skipping job metrics collection")
		return
	}

	counts, err := em.jobProvider.GetActiveJobCounts(ctx)
	if err != nil {
		em.logger.Error("Failed to get active job counts for metrics collection", zap.Error(err))
		return
	}

	for kind, count := range counts {
		em.activeJobCount.Record(ctx, count,
			AttrExportKind.String(kind),
		)
	}
}

// Stop stops the periodic collection.
func (em *ExportMetrics) Stop() {
	em.stopOnce.Do(func() {
		close(em.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewExportMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
