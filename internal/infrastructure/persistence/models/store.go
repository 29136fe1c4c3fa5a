package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopsight/backend/internal/domain/store"
)

// CustomerModel is the persistence model for the synced Customer aggregate.
// Embedded orders (with their line items) live in a jsonb document; they are
// children of the aggregate, not rows of their own.
type CustomerModel struct {
	ShopAggregateModel
	PlatformID string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_customers_shop_platform,priority:2"`
	Email      string          `gorm:"type:varchar(255);index"`
	FirstName  string          `gorm:"type:varchar(255)"`
	LastName   string          `gorm:"type:varchar(255)"`
	Phone      string          `gorm:"type:varchar(50)"`
	TotalSpent decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Orders     string          `gorm:"type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer aggregate.
func (m *CustomerModel) ToDomain() (*store.Customer, error) {
	c := &store.Customer{
		PlatformID: m.PlatformID,
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Phone:      m.Phone,
		TotalSpent: m.TotalSpent,
		Orders:     make([]*store.OrderData, 0),
	}
	m.PopulateShopAggregateRoot(&c.ShopAggregateRoot)
	if m.Orders != "" {
		if err := json.Unmarshal([]byte(m.Orders), &c.Orders); err != nil {
			return nil, fmt.Errorf("decoding orders document for customer %s: %w", m.PlatformID, err)
		}
	}
	return c, nil
}

// FromDomain populates the persistence model from a domain Customer aggregate.
func (m *CustomerModel) FromDomain(c *store.Customer) error {
	m.FromDomainShopAggregateRoot(c.ShopAggregateRoot)
	m.PlatformID = c.PlatformID
	m.Email = c.Email
	m.FirstName = c.FirstName
	m.LastName = c.LastName
	m.Phone = c.Phone
	m.TotalSpent = c.TotalSpent

	orders := c.Orders
	if orders == nil {
		orders = make([]*store.OrderData, 0)
	}
	doc, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encoding orders document for customer %s: %w", c.PlatformID, err)
	}
	m.Orders = string(doc)
	return nil
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer aggregate.
func CustomerModelFromDomain(c *store.Customer) (*CustomerModel, error) {
	m := &CustomerModel{}
	if err := m.FromDomain(c); err != nil {
		return nil, err
	}
	return m, nil
}

// OrderModel is the persistence model for the standalone Order aggregate.
type OrderModel struct {
	ShopAggregateModel
	PlatformID         string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_shop_platform,priority:2"`
	Name               string          `gorm:"type:varchar(100)"`
	Currency           string          `gorm:"type:varchar(10)"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ProcessedAt        *time.Time
	CustomerPlatformID string `gorm:"type:varchar(255);index"`
	LineItems          string `gorm:"type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order aggregate.
func (m *OrderModel) ToDomain() (*store.Order, error) {
	o := &store.Order{
		OrderData: store.OrderData{
			PlatformID:  m.PlatformID,
			Name:        m.Name,
			Currency:    m.Currency,
			TotalPrice:  m.TotalPrice,
			ProcessedAt: m.ProcessedAt,
			LineItems:   make([]store.LineItem, 0),
		},
		CustomerPlatformID: m.CustomerPlatformID,
	}
	m.PopulateShopAggregateRoot(&o.ShopAggregateRoot)
	if m.LineItems != "" {
		if err := json.Unmarshal([]byte(m.LineItems), &o.LineItems); err != nil {
			return nil, fmt.Errorf("decoding line items document for order %s: %w", m.PlatformID, err)
		}
	}
	return o, nil
}

// FromDomain populates the persistence model from a domain Order aggregate.
func (m *OrderModel) FromDomain(o *store.Order) error {
	m.FromDomainShopAggregateRoot(o.ShopAggregateRoot)
	m.PlatformID = o.PlatformID
	m.Name = o.Name
	m.Currency = o.Currency
	m.TotalPrice = o.TotalPrice
	m.ProcessedAt = o.ProcessedAt
	m.CustomerPlatformID = o.CustomerPlatformID

	items := o.LineItems
	if items == nil {
		items = make([]store.LineItem, 0)
	}
	doc, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding line items document for order %s: %w", o.PlatformID, err)
	}
	m.LineItems = string(doc)
	return nil
}

// OrderModelFromDomain creates a new persistence model from a domain Order aggregate.
func OrderModelFromDomain(o *store.Order) (*OrderModel, error) {
	m := &OrderModel{}
	if err := m.FromDomain(o); err != nil {
		return nil, err
	}
	return m, nil
}

// ProductModel is the persistence model for the synced Product aggregate.
type ProductModel struct {
	ShopAggregateModel
	PlatformID  string `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_shop_platform,priority:2"`
	Title       string `gorm:"type:varchar(500)"`
	Vendor      string `gorm:"type:varchar(255)"`
	ProductType string `gorm:"type:varchar(255)"`
	Status      string `gorm:"type:varchar(50)"`
	Variants    string `gorm:"type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product aggregate.
func (m *ProductModel) ToDomain() (*store.Product, error) {
	p := &store.Product{
		PlatformID:  m.PlatformID,
		Title:       m.Title,
		Vendor:      m.Vendor,
		ProductType: m.ProductType,
		Status:      m.Status,
		Variants:    make([]store.Variant, 0),
	}
	m.PopulateShopAggregateRoot(&p.ShopAggregateRoot)
	if m.Variants != "" {
		if err := json.Unmarshal([]byte(m.Variants), &p.Variants); err != nil {
			return nil, fmt.Errorf("decoding variants document for product %s: %w", m.PlatformID, err)
		}
	}
	return p, nil
}

// FromDomain populates the persistence model from a domain Product aggregate.
func (m *ProductModel) FromDomain(p *store.Product) error {
	m.FromDomainShopAggregateRoot(p.ShopAggregateRoot)
	m.PlatformID = p.PlatformID
	m.Title = p.Title
	m.Vendor = p.Vendor
	m.ProductType = p.ProductType
	m.Status = p.Status

	variants := p.Variants
	if variants == nil {
		variants = make([]store.Variant, 0)
	}
	doc, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("encoding variants document for product %s: %w", p.PlatformID, err)
	}
	m.Variants = string(doc)
	return nil
}

// ProductModelFromDomain creates a new persistence model from a domain Product aggregate.
func ProductModelFromDomain(p *store.Product) (*ProductModel, error) {
	m := &ProductModel{}
	if err := m.FromDomain(p); err != nil {
		return nil, err
	}
	return m, nil
}
