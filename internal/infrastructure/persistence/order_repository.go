package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/store"
	"github.com/shopsight/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements store.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByPlatformID finds a standalone order by its platform id within a shop
func (r *GormOrderRepository) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND platform_id = ?", shopID, platformID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save saves an order with optimistic locking
func (r *GormOrderRepository) Save(ctx context.Context, o *store.Order) error {
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return err
	}
	model.Version = o.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		o.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("shop_id = ? AND platform_id = ?", o.ShopID, o.PlatformID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = o.Version
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// CountForShop returns the number of standalone orders ingested for a shop
func (r *GormOrderRepository) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("shop_id = ?", shopID).
		Count(&count).Error
	return count, err
}
