package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopsight/backend/internal/domain/store"
)

// StoreDataHandler exposes read access to the synced entity store
type StoreDataHandler struct {
	BaseHandler
	customers store.CustomerRepository
	orders    store.OrderRepository
	products  store.ProductRepository
}

// NewStoreDataHandler creates a new StoreDataHandler
func NewStoreDataHandler(
	customers store.CustomerRepository,
	orders store.OrderRepository,
	products store.ProductRepository,
) *StoreDataHandler {
	return &StoreDataHandler{
		customers: customers,
		orders:    orders,
		products:  products,
	}
}

// SyncCountsResponse reports how many entities have been ingested for a shop
type SyncCountsResponse struct {
	Customers int64 `json:"customers"`
	Orders    int64 `json:"orders"`
	Products  int64 `json:"products"`
}

// GetCounts godoc
// @ID           getShopSyncCounts
// @Summary      Get ingested entity counts for a shop
// @Tags         data
// @Produce      json
// @Param        id path string true "Shop ID"
// @Success      200 {object} APIResponse[SyncCountsResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /shops/{id}/data/counts [get]
func (h *StoreDataHandler) GetCounts(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}
	ctx := c.Request.Context()

	customers, err := h.customers.CountForShop(ctx, shopID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	orders, err := h.orders.CountForShop(ctx, shopID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	products, err := h.products.CountForShop(ctx, shopID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, SyncCountsResponse{
		Customers: customers,
		Orders:    orders,
		Products:  products,
	})
}

// GetCustomer godoc
// @ID           getSyncedCustomer
// @Summary      Get a synced customer by platform ID
// @Tags         data
// @Produce      json
// @Param        id path string true "Shop ID"
// @Param        platform_id query string true "Platform customer ID"
// @Success      200 {object} APIResponse[store.Customer]
// @Failure      404 {object} ErrorResponse
// @Router       /shops/{id}/data/customers [get]
func (h *StoreDataHandler) GetCustomer(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	platformID := c.Query("platform_id")
	if platformID == "" {
		h.BadRequest(c, "platform_id is required")
		return
	}

	customer, err := h.customers.FindByPlatformID(c.Request.Context(), shopID, platformID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, customer)
}

// GetOrder godoc
// @ID           getSyncedOrder
// @Summary      Get a synced order by platform ID
// @Tags         data
// @Produce      json
// @Param        id path string true "Shop ID"
// @Param        platform_id query string true "Platform order ID"
// @Success      200 {object} APIResponse[store.Order]
// @Failure      404 {object} ErrorResponse
// @Router       /shops/{id}/data/orders [get]
func (h *StoreDataHandler) GetOrder(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	platformID := c.Query("platform_id")
	if platformID == "" {
		h.BadRequest(c, "platform_id is required")
		return
	}

	order, err := h.orders.FindByPlatformID(c.Request.Context(), shopID, platformID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, order)
}

// GetProduct godoc
// @ID           getSyncedProduct
// @Summary      Get a synced product by platform ID
// @Tags         data
// @Produce      json
// @Param        id path string true "Shop ID"
// @Param        platform_id query string true "Platform product ID"
// @Success      200 {object} APIResponse[store.Product]
// @Failure      404 {object} ErrorResponse
// @Router       /shops/{id}/data/products [get]
func (h *StoreDataHandler) GetProduct(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	platformID := c.Query("platform_id")
	if platformID == "" {
		h.BadRequest(c, "platform_id is required")
		return
	}

	product, err := h.products.FindByPlatformID(c.Request.Context(), shopID, platformID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, product)
}
