package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/transfer"
	"wareflow/internal/infrastructure/http/v1/dto"
	"wareflow/internal/infrastructure/http/v1/middleware"
)

// TransferHandler handles HTTP requests for Transfer documents.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// List handles GET /document/transfer.
func (h *TransferHandler) List(c *gin.Context) {
	filter := transfer.ListFilter{ListFilter: h.ParseListFilter(c)}
	filter.FromWarehouseID = queryID(c, "fromWarehouseId")
	filter.ToWarehouseID = queryID(c, "toWarehouseId")
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

// Create handles POST /document/transfer.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromTransfer(doc))
}

// Get handles GET /document/transfer/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(doc))
}

// Update handles PUT /document/transfer/:id.
func (h *TransferHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateTransferRequest
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

	h.OK(c, dto.FromTransfer(doc))
}

// Delete handles DELETE /document/transfer/:id.
func (h *TransferHandler) Delete(c *gin.Context) {
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

// Approve handles POST /document/transfer/:id/approve.
func (h *TransferHandler) Approve(c *gin.Context) {
	h.action(c, h.service.Approve)
}

// Reject handles POST /document/transfer/:id/reject.
func (h *TransferHandler) Reject(c *gin.Context) {
	h.action(c, h.service.Reject)
}

// Reopen handles POST /document/transfer/:id/reopen.
func (h *TransferHandler) Reopen(c *gin.Context) {
	h.action(c, h.service.Reopen)
}

// Ship handles POST /document/transfer/:id/ship.
// Books transfer_out movements and puts the goods in transit.
func (h *TransferHandler) Ship(c *gin.Context) {
	h.action(c, h.service.Ship)
}

// Receive handles POST /document/transfer/:id/receive.
// Books transfer_in movements for the received quantities.
func (h *TransferHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.ReceiveTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	received, err := req.ReceivedQuantities()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid line id format"))
		return
	}

	if err := h.service.Receive(ctx, docID, received); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(doc))
}

// Complete handles POST /document/transfer/:id/complete.
func (h *TransferHandler) Complete(c *gin.Context) {
	h.action(c, h.service.Complete)
}

// Cancel handles POST /document/transfer/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

func (h *TransferHandler) action(c *gin.Context, fn func(ctx context.Context, docID id.ID) error) {
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

	h.OK(c, dto.FromTransfer(doc))
}

func (h *TransferHandler) respondList(c *gin.Context, result domain.ListResult[*transfer.Transfer]) {
	items := make([]*dto.TransferResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromTransfer(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.TransferResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers transfer routes under the given group.
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup, permission string) {
	rg.GET("", middleware.RequirePermission(permission+":read"), h.List)
	rg.POST("", middleware.RequirePermission(permission+":create"), h.Create)
	rg.GET("/:id", middleware.RequirePermission(permission+":read"), h.Get)
	rg.PUT("/:id", middleware.RequirePermission(permission+":update"), h.Update)
	rg.DELETE("/:id", middleware.RequirePermission(permission+":delete"), h.Delete)
	rg.POST("/:id/approve", middleware.RequirePermission(permission+":approve"), h.Approve)
	rg.POST("/:id/reject", middleware.RequirePermission(permission+":approve"), h.Reject)
	rg.POST("/:id/reopen", middleware.RequirePermission(permission+":update"), h.Reopen)
	rg.POST("/:id/ship", middleware.RequirePermission(permission+":post"), h.Ship)
	rg.POST("/:id/receive", middleware.RequirePermission(permission+":post"), h.Receive)
	rg.POST("/:id/complete", middleware.RequirePermission(permission+":update"), h.Complete)
	rg.POST("/:id/cancel", middleware.RequirePermission(permission+":update"), h.Cancel)
}
