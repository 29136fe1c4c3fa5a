package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	shopapp "github.com/shopsight/backend/internal/application/shop"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/infrastructure/logger"
	"github.com/shopsight/backend/internal/interfaces/http/dto"
)

// ExportEnqueuer queues export submissions for a shop. Implemented by the
// poll scheduler's work queue.
type ExportEnqueuer interface {
	EnqueueExports(shopID uuid.UUID) error
}

// ShopHandler handles shop connection API endpoints
type ShopHandler struct {
	BaseHandler
	shopService *shopapp.Service
	exports     ExportEnqueuer
	logger      *zap.Logger
}

// NewShopHandler creates a new ShopHandler
func NewShopHandler(shopService *shopapp.Service, exports ExportEnqueuer, logger *zap.Logger) *ShopHandler {
	return &ShopHandler{
		shopService: shopService,
		exports:     exports,
		logger:      logger,
	}
}

// ConnectShopRequest represents a request to connect a shop
// @Description Request body for connecting a shop after the install flow
type ConnectShopRequest struct {
	Domain      string `json:"domain" binding:"required,min=1,max=255" example:"acme.myplatform.com"`
	Name        string `json:"name" binding:"max=200" example:"Acme Outdoor"`
	AccessToken string `json:"access_token" binding:"required,min=1" example:"shpat_xxxx"`
}

// ShopResponse represents a shop in API responses. The access token is
// never returned.
type ShopResponse struct {
	ID             uuid.UUID `json:"id"`
	Domain         string    `json:"domain"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	ConnectedAt    string    `json:"connected_at"`
	DisconnectedAt *string   `json:"disconnected_at,omitempty"`
	dto.TimestampResponse
}

func toShopResponse(sh *shop.Shop) ShopResponse {
	resp := ShopResponse{
		ID:          sh.ID,
		Domain:      sh.Domain,
		Name:        sh.Name,
		Status:      string(sh.Status),
		ConnectedAt: sh.ConnectedAt.UTC().Format(time.RFC3339),
		TimestampResponse: dto.TimestampResponse{
			CreatedAt: sh.CreatedAt,
			UpdatedAt: sh.UpdatedAt,
		},
	}
	if sh.DisconnectedAt != nil {
		s := sh.DisconnectedAt.UTC().Format(time.RFC3339)
		resp.DisconnectedAt = &s
	}
	return resp
}

// Connect godoc
// @ID           connectShop
// @Summary      Connect a shop
// @Description  Registers a shop credential and queues an initial bulk export for every entity kind
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        request body ConnectShopRequest true "Shop connection request"
// @Success      200 {object} APIResponse[ShopResponse]
// @Success      201 {object} APIResponse[ShopResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /shops/connect [post]
func (h *ShopHandler) Connect(c *gin.Context) {
	var req ConnectShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.shopService.Connect(c.Request.Context(), req.Domain, req.Name, req.AccessToken)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	// Hand the submissions to the scheduler's queue. A full queue is not a
	// connect failure; the operator can resubmit via the exports API.
	if err := h.exports.EnqueueExports(result.Shop.ID); err != nil {
		h.logger.Error("failed to enqueue initial exports",
			zap.String("shop_id", result.Shop.ID.String()),
			zap.String("domain", result.Shop.Domain),
			zap.Error(err))
	}

	if result.New {
		h.Created(c, toShopResponse(result.Shop))
		return
	}
	h.Success(c, toShopResponse(result.Shop))
}

// Disconnect godoc
// @ID           disconnectShop
// @Summary      Disconnect a shop
// @Description  Marks the shop disconnected and abandons its outstanding export jobs
// @Tags         shops
// @Produce      json
// @Param        id path string true "Shop ID"
// @Success      200 {object} APIResponse[ShopResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /shops/{id} [delete]
func (h *ShopHandler) Disconnect(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	ctx, _ := logger.WithShopID(c.Request.Context(), logger.FromContext(c.Request.Context()), shopID.String())

	sh, err := h.shopService.Disconnect(ctx, shopID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toShopResponse(sh))
}

// GetByID godoc
// @ID           getShopById
// @Summary      Get shop by ID
// @Tags         shops
// @Produce      json
// @Param        id path string true "Shop ID"
// @Success      200 {object} APIResponse[ShopResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /shops/{id} [get]
func (h *ShopHandler) GetByID(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	sh, err := h.shopService.Get(c.Request.Context(), shopID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toShopResponse(sh))
}

// List godoc
// @ID           listShops
// @Summary      List connected shops
// @Tags         shops
// @Produce      json
// @Success      200 {object} APIResponse[[]ShopResponse]
// @Router       /shops [get]
func (h *ShopHandler) List(c *gin.Context) {
	shops, err := h.shopService.ListConnected(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]ShopResponse, 0, len(shops))
	for _, sh := range shops {
		responses = append(responses, toShopResponse(sh))
	}
	h.Success(c, responses)
}
