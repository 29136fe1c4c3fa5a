package export

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopsight/backend/internal/domain/shared"
)

// ErrDuplicateJob is returned when an active job already exists for the same
// (shop, entity kind). Duplicate platform exports are costly and never wanted.
var ErrDuplicateJob = shared.NewDomainError("DUPLICATE_JOB", "An active export job already exists for this shop and entity kind")

// JobFilter defines the filters for querying export jobs
type JobFilter struct {
	ShopID *uuid.UUID
	Kind   *EntityKind
	Status *JobStatus
}

// JobRepository is the durable registry of bulk export jobs.
//
// All mutations are single-record compare-and-set operations keyed by job ID
// and version, so concurrent schedulers never need cross-job locking and the
// exactly-one-poller guarantee holds across process restarts.
type JobRepository interface {
	// Create persists a new job. Fails with ErrDuplicateJob if an active
	// (non-terminal) job already exists for the same (shop, kind).
	Create(ctx context.Context, job *BulkExportJob) error

	// FindByID finds a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*BulkExportJob, error)

	// FindDue returns active jobs whose last status check is older than
	// interval and whose lease is absent or expired, oldest first.
	FindDue(ctx context.Context, interval time.Duration, limit int) ([]*BulkExportJob, error)

	// FindActive returns the active job for (shop, kind), or shared.ErrNotFound
	FindActive(ctx context.Context, shopID uuid.UUID, kind EntityKind) (*BulkExportJob, error)

	// FindAll returns jobs matching the filter, newest first
	FindAll(ctx context.Context, filter JobFilter, page, pageSize int) (*shared.Paginated[*BulkExportJob], error)

	// Claim atomically leases a due job until the deadline. It compares the
	// job's version, so of two schedulers racing on the same job exactly one
	// wins; the loser gets shared.ErrConcurrencyConflict.
	Claim(ctx context.Context, job *BulkExportJob, until time.Time) error

	// Save persists a state transition using optimistic locking. Returns
	// shared.ErrConcurrencyConflict if the stored version moved on.
	Save(ctx context.Context, job *BulkExportJob) error

	// AbandonActiveForShop marks every active job of a shop abandoned.
	// Used when a shop disconnects; returns the number of jobs affected.
	AbandonActiveForShop(ctx context.Context, shopID uuid.UUID) (int64, error)
}
