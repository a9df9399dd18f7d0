package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/goods_receipt"
	"wareflow/internal/infrastructure/http/v1/dto"
	"wareflow/internal/infrastructure/http/v1/middleware"
)

// GoodsReceiptHandler handles HTTP requests for GoodsReceipt documents.
type GoodsReceiptHandler struct {
	*BaseHandler
	service *goods_receipt.Service
}

// NewGoodsReceiptHandler creates a new goods receipt handler.
func NewGoodsReceiptHandler(base *BaseHandler, service *goods_receipt.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{BaseHandler: base, service: service}
}

// List handles GET /document/goods-receipt.
func (h *GoodsReceiptHandler) List(c *gin.Context) {
	filter := goods_receipt.ListFilter{ListFilter: h.ParseListFilter(c)}
	filter.SupplierID = queryID(c, "supplierId")
	filter.WarehouseID = queryID(c, "warehouseId")
	filter.PurchaseOrderID = queryID(c, "purchaseOrderId")
	filter.Status = queryStatus(c, "status")
	filter.Posted = queryBool(c, "posted")
	filter.DateFrom = queryTime(c, "dateFrom")
	filter.DateTo = queryTime(c, "dateTo")

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondList(c, result)
}

// Create handles POST /document/goods-receipt.
// With postImmediately the receipt is numbered, saved and posted in one
// transaction.
func (h *GoodsReceiptHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateGoodsReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()

	var err error
	if req.PostImmediately {
		err = h.service.PostAndSave(ctx, doc)
	} else {
		err = h.service.Create(ctx, doc)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromGoodsReceipt(doc))
}

// Get handles GET /document/goods-receipt/:id.
func (h *GoodsReceiptHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromGoodsReceipt(doc))
}

// Update handles PUT /document/goods-receipt/:id.
func (h *GoodsReceiptHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateGoodsReceiptRequest
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

	h.OK(c, dto.FromGoodsReceipt(doc))
}

// Delete handles DELETE /document/goods-receipt/:id.
func (h *GoodsReceiptHandler) Delete(c *gin.Context) {
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

// Post handles POST /document/goods-receipt/:id/post.
func (h *GoodsReceiptHandler) Post(c *gin.Context) {
	h.action(c, h.service.Post)
}

// Unpost handles POST /document/goods-receipt/:id/unpost.
func (h *GoodsReceiptHandler) Unpost(c *gin.Context) {
	h.action(c, h.service.Unpost)
}

// Cancel handles POST /document/goods-receipt/:id/cancel.
func (h *GoodsReceiptHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

func (h *GoodsReceiptHandler) action(c *gin.Context, fn func(ctx context.Context, docID id.ID) error) {
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

	h.OK(c, dto.FromGoodsReceipt(doc))
}

func (h *GoodsReceiptHandler) respondList(c *gin.Context, result domain.ListResult[*goods_receipt.GoodsReceipt]) {
	items := make([]*dto.GoodsReceiptResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromGoodsReceipt(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.GoodsReceiptResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers goods receipt routes under the given group.
func (h *GoodsReceiptHandler) RegisterRoutes(rg *gin.RouterGroup, permission string) {
	rg.GET("", middleware.RequirePermission(permission+":read"), h.List)
	rg.POST("", middleware.RequirePermission(permission+":create"), h.Create)
	rg.GET("/:id", middleware.RequirePermission(permission+":read"), h.Get)
	rg.PUT("/:id", middleware.RequirePermission(permission+":update"), h.Update)
	rg.DELETE("/:id", middleware.RequirePermission(permission+":delete"), h.Delete)
	rg.POST("/:id/post", middleware.RequirePermission(permission+":post"), h.Post)
	rg.POST("/:id/unpost", middleware.RequirePermission(permission+":unpost"), h.Unpost)
	rg.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), h.Cancel)
}
