package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
)

// Variant is one sellable variation of a product
type Variant struct {
	PlatformID        string          `json:"platform_id"`
	Title             string          `json:"title"`
	SKU               string          `json:"sku,omitempty"`
	Price             decimal.Decimal `json:"price"`
	InventoryQuantity int             `json:"inventory_quantity"`
}

func (v *Variant) applyRecord(rec *platform.Record) {
	mergeString(rec, "title", &v.Title)
	mergeString(rec, "sku", &v.SKU)
	mergeDecimal(rec, "price", &v.Price)
	mergeInt(rec, "inventoryQuantity", &v.InventoryQuantity)
}

// Product owns the ordered list of its variants
type Product struct {
	shared.ShopAggregateRoot
	PlatformID  string    `json:"platform_id"`
	Title       string    `json:"title"`
	Vendor      string    `json:"vendor,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Variants    []Variant `json:"variants"`
}

// NewProductFromRecord creates a product from its first top-level record
func NewProductFromRecord(shopID uuid.UUID, rec *platform.Record) *Product {
	p := &Product{
		ShopAggregateRoot: shared.NewShopAggregateRoot(shopID),
		PlatformID:        rec.ID,
		Variants:          make([]Variant, 0),
	}
	p.Apply(rec)
	return p
}

// Apply merges a product record into the aggregate, last-write-wins per field
func (p *Product) Apply(rec *platform.Record) {
	mergeString(rec, "title", &p.Title)
	mergeString(rec, "vendor", &p.Vendor)
	mergeString(rec, "productType", &p.ProductType)
	mergeString(rec, "status", &p.Status)
	p.UpdatedAt = time.Now()
}

// UpsertVariant attaches a variant child, deduplicating by platform id.
// Returns true when a new variant was appended.
func (p *Product) UpsertVariant(rec *platform.Record) bool {
	for i := range p.Variants {
		if p.Variants[i].PlatformID == rec.ID {
			p.Variants[i].applyRecord(rec)
			p.UpdatedAt = time.Now()
			return false
		}
	}
	v := Variant{PlatformID: rec.ID}
	v.applyRecord(rec)
	p.Variants = append(p.Variants, v)
	p.UpdatedAt = time.Now()
	return true
}
