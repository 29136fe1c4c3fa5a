package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/shared"
)

// ExportJobModel is the persistence model for the BulkExportJob domain entity.
// The partial unique index guarding one active job per (shop, kind) lives in
// the migrations; GORM tags cannot express it.
type ExportJobModel struct {
	AggregateModel
	ShopID             uuid.UUID         `gorm:"type:uuid;not null;index:idx_export_jobs_shop_kind"`
	Kind               export.EntityKind `gorm:"type:varchar(20);not null;index:idx_export_jobs_shop_kind"`
	OperationID        string            `gorm:"type:varchar(255);not null"`
	Status             export.JobStatus  `gorm:"type:varchar(20);not null;index"`
	ResultURL          *string           `gorm:"type:text"`
	ErrorCode          string            `gorm:"type:varchar(50)"`
	PollAttempts       int               `gorm:"not null;default:0"`
	LastCheckedAt      *time.Time        `gorm:"index"`
	LeaseExpiresAt     *time.Time
	CompletedAt        *time.Time
	RecordsIngested    int `gorm:"not null;default:0"`
	RecordsSkipped     int `gorm:"not null;default:0"`
	UnresolvedChildren int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ExportJobModel) TableName() string {
	return "export_jobs"
}

// ToDomain converts the persistence model to a domain BulkExportJob entity.
func (m *ExportJobModel) ToDomain() *export.BulkExportJob {
	return &export.BulkExportJob{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		ShopID:             m.ShopID,
		Kind:               m.Kind,
		OperationID:        m.OperationID,
		Status:             m.Status,
		ResultURL:          m.ResultURL,
		ErrorCode:          m.ErrorCode,
		PollAttempts:       m.PollAttempts,
		LastCheckedAt:      m.LastCheckedAt,
		LeaseExpiresAt:     m.LeaseExpiresAt,
		CompletedAt:        m.CompletedAt,
		RecordsIngested:    m.RecordsIngested,
		RecordsSkipped:     m.RecordsSkipped,
		UnresolvedChildren: m.UnresolvedChildren,
	}
}

// FromDomain populates the persistence model from a domain BulkExportJob entity.
func (m *ExportJobModel) FromDomain(j *export.BulkExportJob) {
	m.FromDomainAggregateRoot(j.BaseAggregateRoot)
	m.ShopID = j.ShopID
	m.Kind = j.Kind
	m.OperationID = j.OperationID
	m.Status = j.Status
	m.ResultURL = j.ResultURL
	m.ErrorCode = j.ErrorCode
	m.PollAttempts = j.PollAttempts
	m.LastCheckedAt = j.LastCheckedAt
	m.LeaseExpiresAt = j.LeaseExpiresAt
	m.CompletedAt = j.CompletedAt
	m.RecordsIngested = j.RecordsIngested
	m.RecordsSkipped = j.RecordsSkipped
	m.UnresolvedChildren = j.UnresolvedChildren
}

// ExportJobModelFromDomain creates a new persistence model from a domain BulkExportJob entity.
func ExportJobModelFromDomain(j *export.BulkExportJob) *ExportJobModel {
	m := &ExportJobModel{}
	m.FromDomain(j)
	return m
}
