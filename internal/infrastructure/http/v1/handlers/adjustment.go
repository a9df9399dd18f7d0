package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/adjustment"
	"wareflow/internal/infrastructure/http/v1/dto"
	"wareflow/internal/infrastructure/http/v1/middleware"
)

// AdjustmentHandler handles HTTP requests for StockAdjustment documents.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new stock adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, service: service}
}

// List handles GET /document/adjustment.
func (h *AdjustmentHandler) List(c *gin.Context) {
	filter := adjustment.ListFilter{ListFilter: h.ParseListFilter(c)}
	filter.WarehouseID = queryID(c, "warehouseId")
	filter.Status = queryStatus(c, "status")
	filter.DateFrom = queryTime(c, "dateFrom")
	filter.DateTo = queryTime(c, "dateTo")

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondList(c, result)
}

// Create handles POST /document/adjustment.
func (h *AdjustmentHandler) Create(c *gin.Context) {
	var req dto.CreateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromAdjustment(doc))
}

// Get handles GET /document/adjustment/:id.
func (h *AdjustmentHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustment(doc))
}

// Update handles PUT /document/adjustment/:id.
func (h *AdjustmentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(doc)

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustment(doc))
}

// Delete handles DELETE /document/adjustment/:id.
func (h *AdjustmentHandler) Delete(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Approve handles POST /document/adjustment/:id/approve.
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	h.action(c, h.service.Approve)
}

// Reject handles POST /document/adjustment/:id/reject.
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	h.action(c, h.service.Reject)
}

// Post handles POST /document/adjustment/:id/post.
// Adjustments over the approval threshold are parked in pending_approval
// and must be approved first.
func (h *AdjustmentHandler) Post(c *gin.Context) {
	h.action(c, h.service.Post)
}

// Unpost handles POST /document/adjustment/:id/unpost.
func (h *AdjustmentHandler) Unpost(c *gin.Context) {
	h.action(c, h.service.Unpost)
}

// Cancel handles POST /document/adjustment/:id/cancel.
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

func (h *AdjustmentHandler) action(c *gin.Context, fn func(ctx context.Context, docID id.ID) error) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := fn(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustment(doc))
}

func (h *AdjustmentHandler) respondList(c *gin.Context, result domain.ListResult[*adjustment.StockAdjustment]) {
	items := make([]*dto.AdjustmentResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromAdjustment(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.AdjustmentResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers stock adjustment routes under the given group.
func (h *AdjustmentHandler) RegisterRoutes(rg *gin.RouterGroup, permission string) {
	rg.GET("", middleware.RequirePermission(permission+":read"), h.List)
	rg.POST("", middleware.RequirePermission(permission+":create"), h.Create)
	rg.GET("/:id", middleware.RequirePermission(permission+":read"), h.Get)
	rg.PUT("/:id", middleware.RequirePermission(permission+":update"), h.Update)
	rg.DELETE("/:id", middleware.RequirePermission(permission+":delete"), h.Delete)
	rg.POST("/:id/approve", middleware.RequirePermission(permission+":approve"), h.Approve)
	rg.POST("/:id/reject", middleware.RequirePermission(permission+":approve"), h.Reject)
	rg.POST("/:id/post", middleware.RequirePermission(permission+":post"), h.Post)
	rg.POST("/:id/unpost", middleware.RequirePermission(permission+":unpost"), h.Unpost)
	rg.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), h.Cancel)
}
