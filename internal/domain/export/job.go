// Package export contains the bulk-export bounded context.
//
// A BulkExportJob tracks one asynchronous export the commerce platform runs
// on our behalf: submitted once, polled until the platform reports a terminal
// state, then fetched and ingested. The job record is the single source of
// truth for what is outstanding; it survives process restarts and is the
// synchronization point between concurrent pollers.
package export

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopsight/backend/internal/domain/shared"
)

// EntityKind is the collection a bulk export covers
type EntityKind string

const (
	KindProduct  EntityKind = "product"
	KindOrder    EntityKind = "order"
	KindCustomer EntityKind = "customer"
)

// AllKinds returns every exportable entity kind
func AllKinds() []EntityKind {
	return []EntityKind{KindProduct, KindOrder, KindCustomer}
}

// IsValid checks if the entity kind is valid
func (k EntityKind) IsValid() bool {
	switch k {
	case KindProduct, KindOrder, KindCustomer:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a bulk export job
type JobStatus string

const (
	// JobStatusCreated means the job was submitted but never polled
	JobStatusCreated JobStatus = "created"
	// JobStatusPending means the platform is still computing the export
	JobStatusPending JobStatus = "pending"
	// JobStatusCompleted means the result was fetched and ingested
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the platform or the ingest pipeline gave up
	JobStatusFailed JobStatus = "failed"
	// JobStatusAbandoned means the shop disconnected while the job was outstanding
	JobStatusAbandoned JobStatus = "abandoned"
)

// IsValid checks if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusCreated, JobStatusPending, JobStatusCompleted, JobStatusFailed, JobStatusAbandoned:
		return true
	}
	return false
}

// IsTerminal returns true if no further polling will ever happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusAbandoned
}

// Well-known error codes recorded on failed jobs
const (
	ErrCodeAuth          = "AUTH_FAILED"
	ErrCodeQuery         = "QUERY_REJECTED"
	ErrCodeFetch         = "FETCH_FAILED"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeDataIntegrity = "DATA_INTEGRITY"
)

// BulkExportJob is one asynchronous bulk export, from submission to ingestion
type BulkExportJob struct {
	shared.BaseAggregateRoot
	ShopID        uuid.UUID  `json:"shop_id"`
	Kind          EntityKind `json:"kind"`
	OperationID   string     `json:"operation_id"`
	Status        JobStatus  `json:"status"`
	ResultURL     *string    `json:"result_url,omitempty"`
	ErrorCode     string     `json:"error_code,omitempty"`
	PollAttempts  int        `json:"poll_attempts"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	// LeaseExpiresAt is set while one poller owns the job. An expired lease
	// makes the job claimable again, so a crashed worker cannot strand it.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	// Ingest counters, populated when the job completes
	RecordsIngested    int `json:"records_ingested"`
	RecordsSkipped     int `json:"records_skipped"`
	UnresolvedChildren int `json:"unresolved_children"`
}

// NewBulkExportJob creates a job for a freshly submitted platform export
func NewBulkExportJob(shopID uuid.UUID, kind EntityKind, operationID string) (*BulkExportJob, error) {
	if shopID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SHOP_ID", "Shop ID cannot be nil")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", fmt.Sprintf("Invalid entity kind: %s", kind))
	}
	if operationID == "" {
		return nil, shared.NewDomainError("INVALID_OPERATION_ID", "Platform operation ID cannot be empty")
	}

	return &BulkExportJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ShopID:            shopID,
		Kind:              kind,
		OperationID:       operationID,
		Status:            JobStatusCreated,
	}, nil
}

// IsActive returns true while the job still needs polling
func (j *BulkExportJob) IsActive() bool {
	return !j.Status.IsTerminal()
}

// MarkPolled records a status check that left the job non-terminal
func (j *BulkExportJob) MarkPolled() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot poll job in terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusPending
	j.PollAttempts++
	j.LastCheckedAt = &now
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Complete records a successful export with its downloadable result. A nil
// resultURL means the operation finished with nothing to export.
func (j *BulkExportJob) Complete(resultURL *string, ingested, skipped, unresolved int) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete job in terminal state: %s", j.Status))
	}
	if resultURL != nil && *resultURL == "" {
		return shared.NewDomainError("INVALID_RESULT_URL", "Result URL cannot be empty")
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.ResultURL = resultURL
	j.RecordsIngested = ingested
	j.RecordsSkipped = skipped
	j.UnresolvedChildren = unresolved
	j.CompletedAt = &now
	j.LastCheckedAt = &now
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Fail records a terminal failure with the platform or pipeline error code
func (j *BulkExportJob) Fail(errorCode string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail job in terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorCode = errorCode
	j.CompletedAt = &now
	j.LastCheckedAt = &now
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Abandon excludes the job from polling after its shop disconnected
func (j *BulkExportJob) Abandon() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot abandon job in terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusAbandoned
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	j.IncrementVersion()
	return nil
}

// Expired reports whether the job overstayed the allowed age or poll budget
// without reaching a terminal state. Such jobs are force-failed with a
// TIMEOUT error so they cannot retry indefinitely.
func (j *BulkExportJob) Expired(maxAge time.Duration, maxPollAttempts int) bool {
	if j.Status.IsTerminal() {
		return false
	}
	if maxAge > 0 && time.Since(j.CreatedAt) > maxAge {
		return true
	}
	if maxPollAttempts > 0 && j.PollAttempts >= maxPollAttempts {
		return true
	}
	return false
}

// Lease grants exclusive poll ownership until the deadline
func (j *BulkExportJob) Lease(until time.Time) {
	j.LeaseExpiresAt = &until
	j.IncrementVersion()
}

// Duration returns how long the job has been (or was) outstanding
func (j *BulkExportJob) Duration() time.Duration {
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(j.CreatedAt)
	}
	return time.Since(j.CreatedAt)
}
