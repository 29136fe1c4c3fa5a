package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	exportapp "github.com/shopsight/backend/internal/application/export"
	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/infrastructure/logger"
)

// ExportJobHandler handles export job API endpoints
type ExportJobHandler struct {
	BaseHandler
	exportService *exportapp.Service
}

// NewExportJobHandler creates a new ExportJobHandler
func NewExportJobHandler(exportService *exportapp.Service) *ExportJobHandler {
	return &ExportJobHandler{
		exportService: exportService,
	}
}

// SubmitExportRequest represents a request to submit a bulk export
// @Description Request body for submitting a bulk export for one entity kind
type SubmitExportRequest struct {
	ShopID string `json:"shop_id" binding:"required,uuid" example:"01890a5d-ac96-774b-bcce-b302099a8057"`
	Kind   string `json:"kind" binding:"required,oneof=product order customer" example:"product"`
}

// ListExportJobsRequest represents export job list query parameters
type ListExportJobsRequest struct {
	ShopID   string `form:"shop_id" binding:"omitempty,uuid"`
	Kind     string `form:"kind" binding:"omitempty,oneof=product order customer"`
	Status   string `form:"status" binding:"omitempty,oneof=created pending completed failed abandoned"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Submit godoc
// @ID           submitExport
// @Summary      Submit a bulk export
// @Description  Requests a bulk export from the platform and registers the tracking job
// @Tags         exports
// @Accept       json
// @Produce      json
// @Param        request body SubmitExportRequest true "Export submission request"
// @Success      201 {object} APIResponse[export.BulkExportJob]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /exports [post]
func (h *ExportJobHandler) Submit(c *gin.Context) {
	var req SubmitExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	shopID := uuid.MustParse(req.ShopID)
	ctx, _ := logger.WithShopID(c.Request.Context(), logger.FromContext(c.Request.Context()), shopID.String())

	job, err := h.exportService.Submit(ctx, shopID, export.EntityKind(req.Kind))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, job)
}

// SubmitAll godoc
// @ID           submitAllExports
// @Summary      Submit bulk exports for every entity kind
// @Tags         exports
// @Produce      json
// @Param        id path string true "Shop ID"
// @Success      201 {object} APIResponse[[]export.BulkExportJob]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /shops/{id}/exports [post]
func (h *ExportJobHandler) SubmitAll(c *gin.Context) {
	shopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shop ID format")
		return
	}

	ctx, _ := logger.WithShopID(c.Request.Context(), logger.FromContext(c.Request.Context()), shopID.String())

	jobs, err := h.exportService.SubmitAll(ctx, shopID)
	if err != nil {
		// Partial submissions are still reported; the error carries the
		// kinds that failed.
		if len(jobs) > 0 {
			h.Created(c, jobs)
			return
		}
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, jobs)
}

// GetByID godoc
// @ID           getExportJobById
// @Summary      Get export job by ID
// @Tags         exports
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} APIResponse[export.BulkExportJob]
// @Failure      404 {object} ErrorResponse
// @Router       /exports/{id} [get]
func (h *ExportJobHandler) GetByID(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.exportService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, job)
}

// List godoc
// @ID           listExportJobs
// @Summary      List export jobs
// @Description  Returns a filtered page of export jobs, newest first
// @Tags         exports
// @Produce      json
// @Param        shop_id query string false "Filter by shop ID"
// @Param        kind query string false "Filter by entity kind" Enums(product, order, customer)
// @Param        status query string false "Filter by job status" Enums(created, pending, completed, failed, abandoned)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]export.BulkExportJob]
// @Failure      400 {object} ErrorResponse
// @Router       /exports [get]
func (h *ExportJobHandler) List(c *gin.Context) {
	var req ListExportJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var filter export.JobFilter
	if req.ShopID != "" {
		shopID := uuid.MustParse(req.ShopID)
		filter.ShopID = &shopID
	}
	if req.Kind != "" {
		kind := export.EntityKind(req.Kind)
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := export.JobStatus(req.Status)
		filter.Status = &status
	}

	page, err := h.exportService.ListJobs(c.Request.Context(), filter, req.Page, req.PageSize)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
