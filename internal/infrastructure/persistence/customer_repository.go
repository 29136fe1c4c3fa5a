package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/store"
	"github.com/shopsight/backend/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements store.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByPlatformID finds a customer by its platform id within a shop
func (r *GormCustomerRepository) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Customer, error) {
	var model models.CustomerModel
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

// FindByOrderPlatformID finds the customer owning an embedded order. The
// orders column is a jsonb array of order documents, so a containment query
// on the platform_id key hits the whole collection in one pass.
func (r *GormCustomerRepository) FindByOrderPlatformID(ctx context.Context, shopID uuid.UUID, orderPlatformID string) (*store.Customer, error) {
	probe, err := json.Marshal([]map[string]string{{"platform_id": orderPlatformID}})
	if err != nil {
		return nil, fmt.Errorf("building order containment probe: %w", err)
	}

	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND orders @> ?", shopID, string(probe)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save saves a customer with optimistic locking. The stored version is
// compared against the version the aggregate was loaded at; a miss on both
// the update and the insert path means someone else wrote first.
func (r *GormCustomerRepository) Save(ctx context.Context, c *store.Customer) error {
	model, err := models.CustomerModelFromDomain(c)
	if err != nil {
		return err
	}
	model.Version = c.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		c.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("shop_id = ? AND platform_id = ?", c.ShopID, c.PlatformID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = c.Version
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// CountForShop returns the number of customers ingested for a shop
func (r *GormCustomerRepository) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("shop_id = ?", shopID).
		Count(&count).Error
	return count, err
}
