package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
)

// LineItem is one purchased item inside an order
type LineItem struct {
	PlatformID string          `json:"platform_id"`
	Title      string          `json:"title"`
	SKU        string          `json:"sku,omitempty"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// applyRecord merges incoming line item fields last-write-wins
func (li *LineItem) applyRecord(rec *platform.Record) {
	mergeString(rec, "title", &li.Title)
	mergeString(rec, "sku", &li.SKU)
	mergeInt(rec, "quantity", &li.Quantity)
	mergeDecimal(rec, "price", &li.Price)
}

// OrderData is the platform-visible state of one order. It appears both as
// the body of the standalone Order aggregate and embedded inside a Customer.
type OrderData struct {
	PlatformID  string          `json:"platform_id"`
	Name        string          `json:"name"`
	Currency    string          `json:"currency,omitempty"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	LineItems   []LineItem      `json:"line_items"`
}

// ApplyRecord merges incoming order fields last-write-wins. Line items are
// untouched; they arrive as separate child records.
func (o *OrderData) ApplyRecord(rec *platform.Record) {
	mergeString(rec, "name", &o.Name)
	mergeString(rec, "currency", &o.Currency)
	mergeDecimal(rec, "totalPrice", &o.TotalPrice)
	mergeTime(rec, "processedAt", &o.ProcessedAt)
}

// UpsertLineItem attaches a line item child, deduplicating by platform id.
// Returns true when a new item was appended, false when an existing one was
// merged in place.
func (o *OrderData) UpsertLineItem(rec *platform.Record) bool {
	for i := range o.LineItems {
		if o.LineItems[i].PlatformID == rec.ID {
			o.LineItems[i].applyRecord(rec)
			return false
		}
	}
	li := LineItem{PlatformID: rec.ID}
	li.applyRecord(rec)
	o.LineItems = append(o.LineItems, li)
	return true
}

// Order is the standalone order aggregate used by the order-export path
type Order struct {
	shared.ShopAggregateRoot
	OrderData
	// CustomerPlatformID links back to the buying customer when the export carried it
	CustomerPlatformID string `json:"customer_platform_id,omitempty"`
}

// NewOrderFromRecord creates an order from its first top-level record
func NewOrderFromRecord(shopID uuid.UUID, rec *platform.Record) *Order {
	o := &Order{
		ShopAggregateRoot: shared.NewShopAggregateRoot(shopID),
		OrderData:         OrderData{PlatformID: rec.ID},
	}
	o.Apply(rec)
	return o
}

// Apply merges an order record into the aggregate
func (o *Order) Apply(rec *platform.Record) {
	o.OrderData.ApplyRecord(rec)
	mergeString(rec, "customerId", &o.CustomerPlatformID)
	o.UpdatedAt = time.Now()
}
