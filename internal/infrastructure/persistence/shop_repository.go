package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/infrastructure/persistence/models"
)

// GormShopRepository implements shop.Repository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByID finds a shop by its ID
func (r *GormShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*shop.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDomain finds a shop by its platform domain
func (r *GormShopRepository) FindByDomain(ctx context.Context, domain string) (*shop.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("domain = ?", strings.ToLower(strings.TrimSpace(domain))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindConnected returns every shop whose credential is still usable
func (r *GormShopRepository) FindConnected(ctx context.Context) ([]*shop.Shop, error) {
	var shopModels []models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", shop.StatusConnected).
		Order("connected_at ASC").
		Find(&shopModels).Error; err != nil {
		return nil, err
	}

	shops := make([]*shop.Shop, len(shopModels))
	for i := range shopModels {
		shops[i] = shopModels[i].ToDomain()
	}
	return shops, nil
}

// Save creates or updates a shop
func (r *GormShopRepository) Save(ctx context.Context, s *shop.Shop) error {
	model := models.ShopModelFromDomain(s)
	return r.db.WithContext(ctx).Save(model).Error
}
