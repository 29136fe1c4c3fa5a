package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/application/ingest"
	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/infrastructure/telemetry"
)

// BackoffStore tracks per-shop throttle state so one rate-limited shop slows
// only its own polls
type BackoffStore interface {
	// Delay reports how long the shop must still wait; zero means go
	Delay(ctx context.Context, shopID uuid.UUID) (time.Duration, error)
	// Bump escalates the shop's backoff window and returns the new delay
	Bump(ctx context.Context, shopID uuid.UUID) (time.Duration, error)
	// Reset clears the shop's backoff after a successful platform call
	Reset(ctx context.Context, shopID uuid.UUID) error
}

// Ingestor consumes a completed export's record stream
type Ingestor interface {
	Ingest(ctx context.Context, job *export.BulkExportJob, stream platform.RecordStream) (*ingest.Summary, error)
}

// fetchAttempts bounds in-process retries of the result download
const fetchAttempts = 3

// PollerConfig bounds how long a job may stay in flight
type PollerConfig struct {
	MaxPollAttempts int
	MaxJobAge       time.Duration
}

// Poller advances one claimed job through a single poll cycle: check the
// operation on the platform, and on completion download the result file and
// run it through the ingestor.
type Poller struct {
	cfg      PollerConfig
	shops    shop.Repository
	jobs     export.JobRepository
	exporter platform.BulkExporter
	fetcher  platform.ResultFetcher
	ingestor Ingestor
	backoff  BackoffStore
	metrics  MetricsRecorder
	logger   *zap.Logger
}

// NewPoller creates a new Poller
func NewPoller(
	cfg PollerConfig,
	shops shop.Repository,
	jobs export.JobRepository,
	exporter platform.BulkExporter,
	fetcher platform.ResultFetcher,
	ingestor Ingestor,
	backoff BackoffStore,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		cfg:      cfg,
		shops:    shops,
		jobs:     jobs,
		exporter: exporter,
		fetcher:  fetcher,
		ingestor: ingestor,
		backoff:  backoff,
		logger:   logger,
	}
}

// WithMetrics attaches a metrics recorder. Without one the poller is silent.
func (p *Poller) WithMetrics(m MetricsRecorder) *Poller {
	p.metrics = m
	return p
}

// Process runs one poll cycle for a job the caller has already claimed.
// Terminal outcomes are persisted here; a nil error with the job still
// pending means the next cycle picks it up again.
func (p *Poller) Process(ctx context.Context, job *export.BulkExportJob) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "export_job", "poll",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrShopID, job.ShopID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExportKind, string(job.Kind)),
		telemetry.WithAttribute(telemetry.SpanAttrOperationID, job.OperationID),
	)
	defer func() {
		telemetry.SetAttribute(span, telemetry.SpanAttrJobStatus, string(job.Status))
		span.End()
	}()

	log := p.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("shop_id", job.ShopID.String()),
		zap.String("kind", string(job.Kind)),
	)

	start := time.Now()
	prior := job.Status
	defer func() {
		p.recordOutcome(ctx, job, prior, time.Since(start))
	}()

	sh, err := p.shops.FindByID(ctx, job.ShopID)
	if err != nil {
		return fmt.Errorf("loading shop for job %s: %w", job.ID, err)
	}
	if !sh.IsConnected() {
		// Results for a disconnected shop are discarded, never ingested
		if err := job.Abandon(); err != nil {
			return err
		}
		log.Info("shop disconnected, abandoning job")
		return p.save(ctx, job, log)
	}

	if job.Expired(p.cfg.MaxJobAge, p.cfg.MaxPollAttempts) {
		if err := job.Fail(export.ErrCodeTimeout); err != nil {
			return err
		}
		log.Warn("job exceeded poll budget, failing",
			zap.Int("poll_attempts", job.PollAttempts),
			zap.Duration("age", job.Duration()),
		)
		return p.save(ctx, job, log)
	}

	status, err := p.exporter.PollOperation(ctx, sh, job.OperationID)
	if err != nil {
		return p.handlePollError(ctx, job, err, log)
	}
	if err := p.backoff.Reset(ctx, job.ShopID); err != nil {
		log.Warn("resetting shop backoff failed", zap.Error(err))
	}

	switch {
	case !status.State.IsTerminal():
		if err := job.MarkPolled(); err != nil {
			return err
		}
		log.Debug("operation still running",
			zap.String("state", string(status.State)),
			zap.Int("poll_attempts", job.PollAttempts),
		)
		return p.save(ctx, job, log)

	case status.State == platform.OperationStateFailed:
		if err := job.Fail(operationErrorCode(status.ErrorCode)); err != nil {
			return err
		}
		log.Warn("operation failed on platform",
			zap.String("platform_error", status.ErrorCode),
			zap.String("error_code", job.ErrorCode),
		)
		return p.save(ctx, job, log)

	default:
		return p.complete(ctx, job, status, log)
	}
}

// handlePollError maps platform poll errors onto the job
func (p *Poller) handlePollError(ctx context.Context, job *export.BulkExportJob, err error, log *zap.Logger) error {
	switch {
	case errors.Is(err, platform.ErrAuth):
		if err := job.Fail(export.ErrCodeAuth); err != nil {
			return err
		}
		log.Error("platform rejected credentials, failing job")
		return p.save(ctx, job, log)

	case errors.Is(err, platform.ErrRateLimited):
		delay, berr := p.backoff.Bump(ctx, job.ShopID)
		if berr != nil {
			log.Warn("bumping shop backoff failed", zap.Error(berr))
		}
		if err := job.MarkPolled(); err != nil {
			return err
		}
		log.Info("platform throttled poll, backing off shop", zap.Duration("delay", delay))
		return p.save(ctx, job, log)

	case errors.Is(err, platform.ErrOperationNotFound), errors.Is(err, platform.ErrQueryRejected):
		if err := job.Fail(export.ErrCodeQuery); err != nil {
			return err
		}
		log.Error("platform no longer recognizes operation, failing job", zap.Error(err))
		return p.save(ctx, job, log)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	default:
		// Transient; the lease expires and the next cycle retries
		if err := job.MarkPolled(); err != nil {
			return err
		}
		log.Warn("poll failed, will retry", zap.Error(err))
		return p.save(ctx, job, log)
	}
}

// complete downloads the result file and ingests it
func (p *Poller) complete(ctx context.Context, job *export.BulkExportJob, status *platform.OperationStatus, log *zap.Logger) error {
	if status.URL == "" {
		// Completed with nothing to export
		if err := job.Complete(nil, 0, 0, 0); err != nil {
			return err
		}
		log.Info("operation completed with no result file", zap.Int64("object_count", status.ObjectCount))
		return p.save(ctx, job, log)
	}

	fetchCtx, fetchSpan := telemetry.StartSpan(ctx, "export_job.fetch_result",
		telemetry.WithAttribute(telemetry.SpanAttrFileSize, status.FileSize),
	)
	stream, err := p.fetchWithRetry(fetchCtx, status.URL, log)
	if err != nil {
		telemetry.RecordError(fetchSpan, err)
		fetchSpan.End()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if ferr := job.Fail(export.ErrCodeFetch); ferr != nil {
			return ferr
		}
		log.Error("result download failed after retries", zap.Error(err))
		return p.save(ctx, job, log)
	}
	fetchSpan.End()

	ingestCtx, ingestSpan := telemetry.StartSpan(ctx, "export_job.ingest")
	summary, err := p.ingestor.Ingest(ingestCtx, job, stream)
	if err != nil {
		telemetry.RecordError(ingestSpan, err)
	} else {
		telemetry.SetAttributes(ingestSpan,
			telemetry.SpanAttrRecordCount, summary.RecordsProcessed,
			telemetry.SpanAttrSkippedCount, summary.RecordsSkipped,
		)
	}
	ingestSpan.End()
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, platform.ErrDataIntegrity):
			if ferr := job.Fail(export.ErrCodeDataIntegrity); ferr != nil {
				return ferr
			}
			log.Error("result file failed integrity threshold", zap.Error(err))
		default:
			if ferr := job.Fail(export.ErrCodeFetch); ferr != nil {
				return ferr
			}
			log.Error("ingestion aborted", zap.Error(err))
		}
		return p.save(ctx, job, log)
	}

	url := status.URL
	if err := job.Complete(&url, summary.RecordsProcessed, summary.RecordsSkipped, summary.UnresolvedChildren); err != nil {
		return err
	}
	log.Info("export ingested",
		zap.Int("records_ingested", summary.RecordsProcessed),
		zap.Int("records_skipped", summary.RecordsSkipped),
		zap.Int("unresolved_children", summary.UnresolvedChildren),
		zap.Int64("file_size", status.FileSize),
		zap.Duration("job_duration", job.Duration()),
	)
	return p.save(ctx, job, log)
}

func (p *Poller) fetchWithRetry(ctx context.Context, url string, log *zap.Logger) (platform.RecordStream, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		stream, err := p.fetcher.Fetch(ctx, url)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn("result download attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}

// recordOutcome reports the cycle duration and any terminal transition the
// cycle produced
func (p *Poller) recordOutcome(ctx context.Context, job *export.BulkExportJob, prior export.JobStatus, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	kind := string(job.Kind)
	p.metrics.RecordPollDuration(ctx, kind, elapsed)
	if job.Status == prior {
		return
	}
	switch job.Status {
	case export.JobStatusCompleted:
		p.metrics.RecordJobCompleted(ctx, job.ShopID, kind)
		p.metrics.RecordIngestedRecords(ctx, job.ShopID, kind, int64(job.RecordsIngested))
		p.metrics.RecordSkippedRecords(ctx, job.ShopID, kind, int64(job.RecordsSkipped))
	case export.JobStatusFailed:
		p.metrics.RecordJobFailed(ctx, job.ShopID, kind, job.ErrorCode)
	}
}

// save persists the job, tolerating a lost claim
func (p *Poller) save(ctx context.Context, job *export.BulkExportJob, log *zap.Logger) error {
	err := p.jobs.Save(ctx, job)
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		log.Warn("job was claimed elsewhere, dropping result")
		return nil
	}
	return err
}

// operationErrorCode keeps the platform's failure code on the job record,
// normalizing only the codes that overlap the job taxonomy. An absent code
// falls back to QUERY_REJECTED.
func operationErrorCode(platformCode string) string {
	switch platformCode {
	case "":
		return export.ErrCodeQuery
	case "ACCESS_DENIED":
		return export.ErrCodeAuth
	case "TIMEOUT":
		return export.ErrCodeTimeout
	default:
		return platformCode
	}
}
