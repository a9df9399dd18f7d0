package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/infrastructure/http/v1/dto"
	"wareflow/internal/infrastructure/http/v1/middleware"
)

// PurchaseOrderHandler handles HTTP requests for PurchaseOrder documents.
type PurchaseOrderHandler struct {
	*BaseHandler
	service *purchase_order.Service
}

// NewPurchaseOrderHandler creates a new purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, service *purchase_order.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{BaseHandler: base, service: service}
}

// List handles GET /document/purchase-order.
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	filter := purchase_order.ListFilter{ListFilter: h.ParseListFilter(c)}
	filter.SupplierID = queryID(c, "supplierId")
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

// Create handles POST /document/purchase-order.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPurchaseOrder(doc))
}

// Get handles GET /document/purchase-order/:id.
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchaseOrder(doc))
}

// Update handles PUT /document/purchase-order/:id.
func (h *PurchaseOrderHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdatePurchaseOrderRequest
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

	h.OK(c, dto.FromPurchaseOrder(doc))
}

// Delete handles DELETE /document/purchase-order/:id.
func (h *PurchaseOrderHandler) Delete(c *gin.Context) {
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

// Submit handles POST /document/purchase-order/:id/submit.
func (h *PurchaseOrderHandler) Submit(c *gin.Context) {
	h.action(c, h.service.Submit)
}

// Approve handles POST /document/purchase-order/:id/approve.
func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	h.action(c, h.service.Approve)
}

// Reject handles POST /document/purchase-order/:id/reject.
func (h *PurchaseOrderHandler) Reject(c *gin.Context) {
	h.action(c, h.service.Reject)
}

// MarkSent handles POST /document/purchase-order/:id/send.
func (h *PurchaseOrderHandler) MarkSent(c *gin.Context) {
	h.action(c, h.service.MarkSent)
}

// Close handles POST /document/purchase-order/:id/close.
func (h *PurchaseOrderHandler) Close(c *gin.Context) {
	h.action(c, h.service.Close)
}

// Cancel handles POST /document/purchase-order/:id/cancel.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

// action runs a lifecycle operation and returns the refreshed document.
func (h *PurchaseOrderHandler) action(c *gin.Context, fn func(ctx context.Context, docID id.ID) error) {
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

	h.OK(c, dto.FromPurchaseOrder(doc))
}

func (h *PurchaseOrderHandler) respondList(c *gin.Context, result domain.ListResult[*purchase_order.PurchaseOrder]) {
	items := make([]*dto.PurchaseOrderResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromPurchaseOrder(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.PurchaseOrderResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers purchase order routes under the given group.
func (h *PurchaseOrderHandler) RegisterRoutes(rg *gin.RouterGroup, permission string) {
	rg.GET("", middleware.RequirePermission(permission+":read"), h.List)
	rg.POST("", middleware.RequirePermission(permission+":create"), h.Create)
	rg.GET("/:id", middleware.RequirePermission(permission+":read"), h.Get)
	rg.PUT("/:id", middleware.RequirePermission(permission+":update"), h.Update)
	rg.DELETE("/:id", middleware.RequirePermission(permission+":delete"), h.Delete)
	rg.POST("/:id/submit", middleware.RequirePermission(permission+":update"), h.Submit)
	rg.POST("/:id/approve", middleware.RequirePermission(permission+":approve"), h.Approve)
	rg.POST("/:id/reject", middleware.RequirePermission(permission+":approve"), h.Reject)
	rg.POST("/:id/send", middleware.RequirePermission(permission+":update"), h.MarkSent)
	rg.POST("/:id/close", middleware.RequirePermission(permission+":update"), h.Close)
	rg.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), h.Cancel)
}
