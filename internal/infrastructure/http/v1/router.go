// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"wareflow/internal/domain/documents/adjustment"
	"wareflow/internal/domain/documents/goods_receipt"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/domain/documents/stock_count"
	"wareflow/internal/domain/documents/transfer"
	"wareflow/internal/domain/masterdata"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/infrastructure/http/v1/handlers"
	"wareflow/internal/infrastructure/http/v1/middleware"
	"wareflow/internal/infrastructure/storage/postgres"
	"wareflow/pkg/logger"
)

// RouterConfig holds pre-built dependencies for the HTTP layer.
// Services are constructed once at startup and shared across requests.
type RouterConfig struct {
	// Pool is the database connection pool (used by health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Document services
	PurchaseOrders *purchase_order.Service
	GoodsReceipts  *goods_receipt.Service
	Transfers      *transfer.Service
	Adjustments    *adjustment.Service
	StockCounts    *stock_count.Service

	// Stock register queries
	Stock *stock.Service

	// Products resolves reorder points for the low-stock query
	Products masterdata.ProductLookup
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1, all routes behind JWT
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		registerDocumentRoutes(v1, cfg)
		registerRegisterRoutes(v1, cfg)
	}

	return router
}

// registerDocumentRoutes registers document endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	docs := rg.Group("/document")
	base := handlers.NewBaseHandler()

	handlers.NewPurchaseOrderHandler(base, cfg.PurchaseOrders).
		RegisterRoutes(docs.Group("/purchase-order"), "document:purchase_order")

	handlers.NewGoodsReceiptHandler(base, cfg.GoodsReceipts).
		RegisterRoutes(docs.Group("/goods-receipt"), "document:goods_receipt")

	handlers.NewTransferHandler(base, cfg.Transfers).
		RegisterRoutes(docs.Group("/transfer"), "document:transfer")

	handlers.NewAdjustmentHandler(base, cfg.Adjustments).
		RegisterRoutes(docs.Group("/adjustment"), "document:adjustment")

	handlers.NewStockCountHandler(base, cfg.StockCounts).
		RegisterRoutes(docs.Group("/stock-count"), "document:stock_count")
}

// registerRegisterRoutes registers stock register query endpoints.
func registerRegisterRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(base, cfg.Stock, cfg.Products)

	read := middleware.RequirePermission("register:stock:read")

	stockGroup := rg.Group("/registers/stock")
	stockGroup.GET("/levels", read, stockHandler.GetLevels)
	stockGroup.GET("/movements", read, stockHandler.GetMovements)
	stockGroup.GET("/turnover", read, stockHandler.GetTurnover)
	stockGroup.GET("/availability/:productId", read, stockHandler.GetAvailability)
	stockGroup.GET("/balance-at-date", read, stockHandler.GetBalanceAtDate)
	stockGroup.GET("/low-stock", read, stockHandler.GetLowStock)
}
