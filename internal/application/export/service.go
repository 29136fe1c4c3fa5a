// Package export orchestrates the bulk-export lifecycle: submitting export
// operations to the commerce platform, polling them to completion and handing
// finished result files to the ingestion pipeline.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/infrastructure/telemetry"
)

// Service submits export jobs and answers job queries
type Service struct {
	shops    shop.Repository
	jobs     export.JobRepository
	exporter platform.BulkExporter
	metrics  MetricsRecorder
	logger   *zap.Logger
}

// NewService creates a new export Service
func NewService(
	shops shop.Repository,
	jobs export.JobRepository,
	exporter platform.BulkExporter,
	logger *zap.Logger,
) *Service {
	return &Service{
		shops:    shops,
		jobs:     jobs,
		exporter: exporter,
		logger:   logger,
	}
}

// WithMetrics attaches a metrics recorder. Without one the service is silent.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// Submit starts a bulk export of one entity kind for a shop. When the shop
// already has an active job for that kind the existing job is returned
// unchanged; the platform allows one running operation per shop, so a second
// submission would be rejected anyway.
func (s *Service) Submit(ctx context.Context, shopID uuid.UUID, kind export.EntityKind) (*export.BulkExportJob, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "export_job", "submit",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExportKind, string(kind)),
	)
	defer span.End()

	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", fmt.Sprintf("unknown entity kind %q", kind))
	}

	sh, err := s.shops.FindByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if !sh.IsConnected() {
		return nil, shared.NewDomainError("SHOP_DISCONNECTED", "shop is not connected")
	}

	existing, err := s.jobs.FindActive(ctx, shopID, kind)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		telemetry.AddEvent(span, "existing_job_reused",
			telemetry.SpanAttrJobID, existing.ID.String(),
		)
		s.logger.Info("export already in flight, reusing job",
			zap.String("shop_id", shopID.String()),
			zap.String("kind", string(kind)),
			zap.String("job_id", existing.ID.String()),
		)
		return existing, nil
	}

	operationID, err := s.exporter.SubmitExport(ctx, sh, kind)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("submitting %s export for %s: %w", kind, sh.Domain, err)
	}

	job, err := export.NewBulkExportJob(shopID, kind, operationID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, export.ErrDuplicateJob) {
			// Lost a race with a concurrent submission; the platform keeps a
			// single operation per shop, so the other job tracks this one too
			return s.jobs.FindActive(ctx, shopID, kind)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrJobID, job.ID.String(),
		telemetry.SpanAttrOperationID, operationID,
	)
	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(ctx, shopID, string(kind))
	}
	s.logger.Info("bulk export submitted",
		zap.String("shop_id", shopID.String()),
		zap.String("kind", string(kind)),
		zap.String("job_id", job.ID.String()),
		zap.String("operation_id", operationID),
	)
	return job, nil
}

// SubmitAll submits one export per entity kind. Kinds that fail to submit are
// reported but do not stop the remaining kinds.
func (s *Service) SubmitAll(ctx context.Context, shopID uuid.UUID) ([]*export.BulkExportJob, error) {
	jobs := make([]*export.BulkExportJob, 0, len(export.AllKinds()))
	var errs []error
	for _, kind := range export.AllKinds() {
		job, err := s.Submit(ctx, shopID, kind)
		if err != nil {
			s.logger.Error("export submission failed",
				zap.String("shop_id", shopID.String()),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Join(errs...)
}

// GetJob returns one job by id
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*export.BulkExportJob, error) {
	return s.jobs.FindByID(ctx, id)
}

// ListJobs returns a filtered page of jobs
func (s *Service) ListJobs(ctx context.Context, filter export.JobFilter, page, pageSize int) (*shared.Paginated[*export.BulkExportJob], error) {
	return s.jobs.FindAll(ctx, filter, page, pageSize)
}

// AbandonShopJobs marks every active job of a shop abandoned. Called when a
// shop disconnects; in-flight poll results for abandoned jobs are discarded.
func (s *Service) AbandonShopJobs(ctx context.Context, shopID uuid.UUID) (int64, error) {
	n, err := s.jobs.AbandonActiveForShop(ctx, shopID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("abandoned active export jobs",
			zap.String("shop_id", shopID.String()),
			zap.Int64("count", n),
		)
	}
	return n, nil
}
