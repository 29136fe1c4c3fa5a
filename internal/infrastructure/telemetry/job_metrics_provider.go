// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormJobMetricsProvider implements JobMetricsProvider using GORM.
// It queries the export_jobs table directly for aggregated metrics.
type GormJobMetricsProvider struct {
	db *gorm.DB
}

// NewGormJobMetricsProvider creates a new GormJobMetricsProvider.
func NewGormJobMetricsProvider(db *gorm.DB) *GormJobMetricsProvider {
	return &GormJobMetricsProvider{db: db}
}

// GetActiveJobCounts returns the number of in-flight jobs per entity kind.
func (p *GormJobMetricsProvider) GetActiveJobCounts(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Kind  string `gorm:"column:kind"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("export_jobs").
		Select("kind, COUNT(*) as count").
		Where("status IN ?", []string{"created", "pending"}).
		Group("kind").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Kind] = r.Count
	}

	return m, nil
}
