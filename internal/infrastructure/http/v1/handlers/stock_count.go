package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/stock_count"
	"wareflow/internal/infrastructure/http/v1/dto"
	"wareflow/internal/infrastructure/http/v1/middleware"
)

// StockCountHandler handles HTTP requests for StockCount documents.
type StockCountHandler struct {
	*BaseHandler
	service *stock_count.Service
}

// NewStockCountHandler creates a new stock count handler.
func NewStockCountHandler(base *BaseHandler, service *stock_count.Service) *StockCountHandler {
	return &StockCountHandler{BaseHandler: base, service: service}
}

// List handles GET /document/stock-count.
func (h *StockCountHandler) List(c *gin.Context) {
	filter := stock_count.ListFilter{ListFilter: h.ParseListFilter(c)}
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

// Create handles POST /document/stock-count.
func (h *StockCountHandler) Create(c *gin.Context) {
	var req dto.CreateStockCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockCount(doc))
}

// Get handles GET /document/stock-count/:id.
func (h *StockCountHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockCount(doc))
}

// Update handles PUT /document/stock-count/:id.
func (h *StockCountHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateStockCountRequest
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

	h.OK(c, dto.FromStockCount(doc))
}

// Delete handles DELETE /document/stock-count/:id.
func (h *StockCountHandler) Delete(c *gin.Context) {
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

// Start handles POST /document/stock-count/:id/start.
func (h *StockCountHandler) Start(c *gin.Context) {
	h.action(c, h.service.Start)
}

// RecordCount handles POST /document/stock-count/:id/count.
// Captures the physical count for one line; the system quantity is
// snapshotted at capture time.
func (h *StockCountHandler) RecordCount(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lineID, err := id.Parse(req.LineID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid line id format"))
		return
	}

	if err := h.service.RecordCount(ctx, docID, lineID, req.Quantity); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockCount(doc))
}

// SubmitForReview handles POST /document/stock-count/:id/submit-review.
func (h *StockCountHandler) SubmitForReview(c *gin.Context) {
	h.action(c, h.service.SubmitForReview)
}

// Recount handles POST /document/stock-count/:id/recount.
func (h *StockCountHandler) Recount(c *gin.Context) {
	h.action(c, h.service.Recount)
}

// OverrideRecount handles POST /document/stock-count/:id/override-recount.
// Accepts a flagged variance without recounting.
func (h *StockCountHandler) OverrideRecount(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.OverrideRecountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lineID, err := id.Parse(req.LineID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid line id format"))
		return
	}

	if err := h.service.OverrideRecount(ctx, docID, lineID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockCount(doc))
}

// Post handles POST /document/stock-count/:id/post.
func (h *StockCountHandler) Post(c *gin.Context) {
	h.action(c, h.service.Post)
}

// Unpost handles POST /document/stock-count/:id/unpost.
func (h *StockCountHandler) Unpost(c *gin.Context) {
	h.action(c, h.service.Unpost)
}

// Cancel handles POST /document/stock-count/:id/cancel.
func (h *StockCountHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

func (h *StockCountHandler) action(c *gin.Context, fn func(ctx context.Context, docID id.ID) error) {
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

	h.OK(c, dto.FromStockCount(doc))
}

func (h *StockCountHandler) respondList(c *gin.Context, result domain.ListResult[*stock_count.StockCount]) {
	items := make([]*dto.StockCountResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromStockCount(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.StockCountResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers stock count routes under the given group.
func (h *StockCountHandler) RegisterRoutes(rg *gin.RouterGroup, permission string) {
	rg.GET("", middleware.RequirePermission(permission+":read"), h.List)
	rg.POST("", middleware.RequirePermission(permission+":create"), h.Create)
	rg.GET("/:id", middleware.RequirePermission(permission+":read"), h.Get)
	rg.PUT("/:id", middleware.RequirePermission(permission+":update"), h.Update)
	rg.DELETE("/:id", middleware.RequirePermission(permission+":delete"), h.Delete)
	rg.POST("/:id/start", middleware.RequirePermission(permission+":update"), h.Start)
	rg.POST("/:id/count", middleware.RequirePermission(permission+":update"), h.RecordCount)
	rg.POST("/:id/submit-review", middleware.RequirePermission(permission+":update"), h.SubmitForReview)
	rg.POST("/:id/recount", middleware.RequirePermission(permission+":update"), h.Recount)
	rg.POST("/:id/override-recount", middleware.RequirePermission(permission+":approve"), h.OverrideRecount)
	rg.POST("/:id/post", middleware.RequirePermission(permission+":post"), h.Post)
	rg.POST("/:id/unpost", middleware.RequirePermission(permission+":unpost"), h.Unpost)
	rg.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), h.Cancel)
}
