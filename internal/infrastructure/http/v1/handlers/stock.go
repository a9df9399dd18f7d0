package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/domain/masterdata"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service  *stock.Service
	products masterdata.ProductLookup
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, products masterdata.ProductLookup) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service, products: products}
}

// GetLevels handles GET /registers/stock/levels.
// Returns stock level rows for a warehouse.
func (h *StockHandler) GetLevels(c *gin.Context) {
	warehouseID := queryID(c, "warehouseId")
	if warehouseID == nil {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	filter := stock.LevelFilter{
		ExcludeZero: c.Query("excludeZero") == "true",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("productIds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if parsed, err := id.Parse(strings.TrimSpace(part)); err == nil {
				filter.ProductIDs = append(filter.ProductIDs, parsed)
			}
		}
	}

	levels, err := h.service.GetWarehouseStock(c.Request.Context(), *warehouseID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockLevelResponse, len(levels))
	for i := range levels {
		items[i] = dto.FromStockLevel(&levels[i])
	}
	h.OK(c, gin.H{"items": items})
}

// GetMovements handles GET /registers/stock/movements.
// Returns ledger history for a product, newest first.
func (h *StockHandler) GetMovements(c *gin.Context) {
	productID := queryID(c, "productId")
	if productID == nil {
		h.Error(c, apperror.NewValidation("productId is required"))
		return
	}

	filter := stock.MovementFilter{
		WarehouseID: queryID(c, "warehouseId"),
		FromDate:    queryTime(c, "dateFrom"),
		ToDate:      queryTime(c, "dateTo"),
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("movementType"); raw != "" {
		movementType := entity.MovementType(raw)
		filter.MovementType = &movementType
	}

	movements, err := h.service.GetMovementHistory(c.Request.Context(), *productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockMovementResponse, len(movements))
	for i := range movements {
		items[i] = dto.FromStockMovement(&movements[i])
	}
	h.OK(c, gin.H{"items": items})
}

// GetTurnover handles GET /registers/stock/turnover.
// Returns opening balance, inbound, outbound and closing balance for a period.
func (h *StockHandler) GetTurnover(c *gin.Context) {
	fromDate := queryTime(c, "dateFrom")
	toDate := queryTime(c, "dateTo")
	if fromDate == nil || toDate == nil {
		h.Error(c, apperror.NewValidation("dateFrom and dateTo are required"))
		return
	}

	filter := stock.TurnoverFilter{
		WarehouseID: queryID(c, "warehouseId"),
		ProductID:   queryID(c, "productId"),
		FromDate:    *fromDate,
		ToDate:      *toDate,
	}

	turnover, err := h.service.GetStockReport(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTurnover(turnover))
}

// GetAvailability handles GET /registers/stock/availability/:productId.
func (h *StockHandler) GetAvailability(c *gin.Context) {
	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id format"))
		return
	}

	available, err := h.service.GetProductAvailability(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		ProductID: productID.String(),
		Available: available,
	})
}

// GetBalanceAtDate handles GET /registers/stock/balance-at-date.
// Reconstructs on-hand for a stock key at a past date from the ledger.
func (h *StockHandler) GetBalanceAtDate(c *gin.Context) {
	productID := queryID(c, "productId")
	warehouseID := queryID(c, "warehouseId")
	date := queryTime(c, "date")
	if productID == nil || warehouseID == nil || date == nil {
		h.Error(c, apperror.NewValidation("productId, warehouseId and date are required"))
		return
	}

	key := entity.StockKey{
		ProductID:   *productID,
		WarehouseID: *warehouseID,
	}
	if binID := queryID(c, "binId"); binID != nil {
		key.BinID = *binID
	}
	if batchID := queryID(c, "batchId"); batchID != nil {
		key.BatchID = *batchID
	}

	balance, err := h.service.GetBalanceAtDate(c.Request.Context(), key, *date)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceAtDateResponse{
		ProductID:   key.ProductID.String(),
		WarehouseID: key.WarehouseID.String(),
		Date:        date.UTC().Truncate(time.Second),
		Balance:     balance,
	})
}

// GetLowStock handles GET /registers/stock/low-stock.
// Reorder points come from product master data.
func (h *StockHandler) GetLowStock(c *gin.Context) {
	ctx := c.Request.Context()
	warehouseID := queryID(c, "warehouseId")
	if warehouseID == nil {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	reorderPoints, err := h.products.ReorderPoints(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	levels, err := h.service.GetLowStock(ctx, *warehouseID, reorderPoints)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockLevelResponse, len(levels))
	for i := range levels {
		items[i] = dto.FromStockLevel(&levels[i])
	}
	h.OK(c, gin.H{"items": items})
}
