package models

import (
	"time"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
)

// ShopModel is the persistence model for the Shop domain entity.
type ShopModel struct {
	AggregateModel
	Domain         string      `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name           string      `gorm:"type:varchar(255)"`
	AccessToken    string      `gorm:"type:text;not null"`
	Status         shop.Status `gorm:"type:varchar(20);not null;default:'connected';index"`
	ConnectedAt    time.Time   `gorm:"not null"`
	DisconnectedAt *time.Time
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop entity.
func (m *ShopModel) ToDomain() *shop.Shop {
	return &shop.Shop{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		Domain:         m.Domain,
		Name:           m.Name,
		AccessToken:    m.AccessToken,
		Status:         m.Status,
		ConnectedAt:    m.ConnectedAt,
		DisconnectedAt: m.DisconnectedAt,
	}
}

// FromDomain populates the persistence model from a domain Shop entity.
func (m *ShopModel) FromDomain(s *shop.Shop) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Domain = s.Domain
	m.Name = s.Name
	m.AccessToken = s.AccessToken
	m.Status = s.Status
	m.ConnectedAt = s.ConnectedAt
	m.DisconnectedAt = s.DisconnectedAt
}

// ShopModelFromDomain creates a new persistence model from a domain Shop entity.
func ShopModelFromDomain(s *shop.Shop) *ShopModel {
	m := &ShopModel{}
	m.FromDomain(s)
	return m
}
