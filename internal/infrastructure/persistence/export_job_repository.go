package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/infrastructure/persistence/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations
const pgUniqueViolation = "23505"

var activeJobStatuses = []export.JobStatus{export.JobStatusCreated, export.JobStatusPending}

// GormJobRepository implements export.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Create persists a new job. The uniqueness of active (shop, kind) pairs is
// enforced by a partial unique index, so racing submitters hit the database
// constraint rather than a read-then-write window.
func (r *GormJobRepository) Create(ctx context.Context, job *export.BulkExportJob) error {
	model := models.ExportJobModelFromDomain(job)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return export.ErrDuplicateJob
		}
		return err
	}
	return nil
}

// FindByID finds a job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*export.BulkExportJob, error) {
	var model models.ExportJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue returns active jobs whose last status check is older than interval
// and whose lease is absent or expired, oldest first. Never-checked jobs sort
// before everything else so fresh submissions get their first poll promptly.
func (r *GormJobRepository) FindDue(ctx context.Context, interval time.Duration, limit int) ([]*export.BulkExportJob, error) {
	now := time.Now()
	var jobModels []models.ExportJobModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", activeJobStatuses).
		Where("last_checked_at IS NULL OR last_checked_at <= ?", now.Add(-interval)).
		Where("lease_expires_at IS NULL OR lease_expires_at < ?", now).
		Order("last_checked_at ASC NULLS FIRST").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*export.BulkExportJob, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	return jobs, nil
}

// FindActive returns the active job for (shop, kind), or shared.ErrNotFound
func (r *GormJobRepository) FindActive(ctx context.Context, shopID uuid.UUID, kind export.EntityKind) (*export.BulkExportJob, error) {
	var model models.ExportJobModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND kind = ? AND status IN ?", shopID, kind, activeJobStatuses).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns jobs matching the filter, newest first
func (r *GormJobRepository) FindAll(ctx context.Context, filter export.JobFilter, page, pageSize int) (*shared.Paginated[*export.BulkExportJob], error) {
	query := r.db.WithContext(ctx).Model(&models.ExportJobModel{})

	if filter.ShopID != nil {
		query = query.Where("shop_id = ?", *filter.ShopID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var jobModels []models.ExportJobModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*export.BulkExportJob, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	result := shared.NewPaginated(jobs, total, page, pageSize)
	return &result, nil
}

// Claim atomically leases a due job until the deadline. The update is guarded
// by the job's version so of two schedulers racing on the same row exactly
// one wins.
func (r *GormJobRepository) Claim(ctx context.Context, job *export.BulkExportJob, until time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ExportJobModel{}).
		Where("id = ? AND version = ?", job.ID, job.Version).
		Updates(map[string]interface{}{
			"lease_expires_at": until,
			"version":          job.Version + 1,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	job.Lease(until)
	return nil
}

// Save persists a state transition using optimistic locking. The domain layer
// increments the version on every transition, so the guard compares against
// the version the job was loaded at.
func (r *GormJobRepository) Save(ctx context.Context, job *export.BulkExportJob) error {
	model := models.ExportJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.ExportJobModel{}).
		Where("id = ? AND version = ?", job.ID, job.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// AbandonActiveForShop marks every active job of a shop abandoned
func (r *GormJobRepository) AbandonActiveForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ExportJobModel{}).
		Where("shop_id = ? AND status IN ?", shopID, activeJobStatuses).
		Updates(map[string]interface{}{
			"status":     export.JobStatusAbandoned,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// error. The production dialector runs on pgx, so constraint failures arrive
// as *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
