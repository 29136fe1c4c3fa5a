package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
)

// Customer owns the ordered list of its orders, each owning its line items.
// It is reconstructed by the customer-export path.
type Customer struct {
	shared.ShopAggregateRoot
	PlatformID string          `json:"platform_id"`
	Email      string          `json:"email,omitempty"`
	FirstName  string          `json:"first_name,omitempty"`
	LastName   string          `json:"last_name,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Orders     []*OrderData    `json:"orders"`
}

// NewCustomerFromRecord creates a customer from its first top-level record
func NewCustomerFromRecord(shopID uuid.UUID, rec *platform.Record) *Customer {
	c := &Customer{
		ShopAggregateRoot: shared.NewShopAggregateRoot(shopID),
		PlatformID:        rec.ID,
		Orders:            make([]*OrderData, 0),
	}
	c.Apply(rec)
	return c
}

// Apply merges a customer record into the aggregate, last-write-wins per field
func (c *Customer) Apply(rec *platform.Record) {
	mergeString(rec, "email", &c.Email)
	mergeString(rec, "firstName", &c.FirstName)
	mergeString(rec, "lastName", &c.LastName)
	mergeString(rec, "phone", &c.Phone)
	mergeDecimal(rec, "totalSpent", &c.TotalSpent)
	c.UpdatedAt = time.Now()
}

// UpsertOrder attaches an order child, deduplicating by platform id.
// The returned OrderData is the embedded instance, so line items attached to
// it later land inside this customer.
func (c *Customer) UpsertOrder(rec *platform.Record) (*OrderData, bool) {
	for _, o := range c.Orders {
		if o.PlatformID == rec.ID {
			o.ApplyRecord(rec)
			c.UpdatedAt = time.Now()
			return o, false
		}
	}
	o := &OrderData{PlatformID: rec.ID}
	o.ApplyRecord(rec)
	c.Orders = append(c.Orders, o)
	c.UpdatedAt = time.Now()
	return o, true
}

// FindOrder returns the embedded order with the given platform id, if any
func (c *Customer) FindOrder(platformID string) *OrderData {
	for _, o := range c.Orders {
		if o.PlatformID == platformID {
			return o
		}
	}
	return nil
}
