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

// GormProductRepository implements store.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByPlatformID finds a product by its platform id within a shop
func (r *GormProductRepository) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Product, error) {
	var model models.ProductModel
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

// Save saves a product with optimistic locking
func (r *GormProductRepository) Save(ctx context.Context, p *store.Product) error {
	model, err := models.ProductModelFromDomain(p)
	if err != nil {
		return err
	}
	model.Version = p.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		p.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("shop_id = ? AND platform_id = ?", p.ShopID, p.PlatformID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = p.Version
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// CountForShop returns the number of products ingested for a shop
func (r *GormProductRepository) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("shop_id = ?", shopID).
		Count(&count).Error
	return count, err
}
