// Package main is the entry point for the wareflow API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wareflow/internal/domain/approval"
	"wareflow/internal/domain/documents/adjustment"
	"wareflow/internal/domain/documents/goods_receipt"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/domain/documents/stock_count"
	"wareflow/internal/domain/documents/transfer"
	"wareflow/internal/domain/posting"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/domain/valuation"
	"wareflow/internal/infrastructure/auth"
	v1 "wareflow/internal/infrastructure/http/v1"
	"wareflow/internal/infrastructure/storage/postgres"
	"wareflow/internal/infrastructure/storage/postgres/document_repo"
	"wareflow/internal/infrastructure/storage/postgres/masterdata_repo"
	"wareflow/internal/infrastructure/storage/postgres/register_repo"
	"wareflow/pkg/logger"
	"wareflow/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting wareflow server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Registers and valuation ---
	stockRepo := register_repo.NewStockRepo(txManager)
	stockService := stock.NewService(stockRepo)

	costLayerRepo := register_repo.NewCostLayerRepo(txManager)
	valuationEngine := valuation.NewEngine(
		costLayerRepo,
		valuation.Method(getEnv("VALUATION_METHOD", string(valuation.MethodFIFO))),
		nil,
	)

	// --- Master data (read-only, maintained externally) ---
	productRepo := masterdata_repo.NewProductRepo(txManager)
	warehouseRepo := masterdata_repo.NewWarehouseRepo(txManager)

	// --- Events and audit ---
	outboxPublisher := postgres.NewOutboxPublisher(txManager)
	eventSink := postgres.NewEventSink(outboxPublisher)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Posting engine ---
	postingEngine := posting.NewEngine(
		stockService,
		valuationEngine,
		txManager,
		warehouseRepo,
		eventSink,
		auditService,
	)

	// --- Workflow rules ---
	approvalRules, err := approval.NewRules(
		getEnv("ADJUSTMENT_APPROVAL_RULE", ""),
		getEnv("RECOUNT_RULE", ""),
	)
	if err != nil {
		log.Fatalw("failed to compile approval rules", "error", err)
	}

	// --- Document services ---
	numeratorService := numerator.New(pool)

	purchaseOrders := purchase_order.NewService(
		document_repo.NewPurchaseOrderRepo(txManager),
		postingEngine,
		numeratorService,
		txManager,
	)
	if tolerance := getEnvFloat("OVER_RECEIPT_TOLERANCE", 0); tolerance > 0 {
		purchaseOrders = purchaseOrders.WithOverReceiptTolerance(tolerance)
	}

	goodsReceipts := goods_receipt.NewService(
		document_repo.NewGoodsReceiptRepo(txManager),
		purchaseOrders,
		postingEngine,
		numeratorService,
		txManager,
	)

	transfers := transfer.NewService(
		document_repo.NewTransferRepo(txManager),
		postingEngine,
		numeratorService,
		txManager,
		eventSink,
	)

	adjustments := adjustment.NewService(
		document_repo.NewAdjustmentRepo(txManager),
		postingEngine,
		numeratorService,
		txManager,
		approvalRules,
	)

	stockCounts := stock_count.NewService(
		document_repo.NewStockCountRepo(txManager),
		stockService,
		postingEngine,
		numeratorService,
		txManager,
		approvalRules,
		eventSink,
	)

	// --- Outbox relay ---
	relay := postgres.NewOutboxRelay(
		pool.Unwrap(),
		getEnvInt("OUTBOX_BATCH_SIZE", 100),
		&outboxLogHandler{log: log},
	)
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go runOutboxRelay(relayCtx, relay, getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second), log)

	// --- JWT ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		JWTValidator:   jwtService,
		PurchaseOrders: purchaseOrders,
		GoodsReceipts:  goodsReceipts,
		Transfers:      transfers,
		Adjustments:    adjustments,
		StockCounts:    stockCounts,
		Stock:          stockService,
		Products:       productRepo,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stopRelay()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// runOutboxRelay polls the outbox until the context is cancelled.
func runOutboxRelay(ctx context.Context, relay *postgres.OutboxRelay, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Warnw("outbox relay batch failed", "error", err)
				continue
			}
			if processed > 0 {
				log.Debugw("outbox relay published events", "count", processed)
			}
		}
	}
}

// outboxLogHandler delivers outbox messages to the log stream.
// Stands in for a message broker publisher.
type outboxLogHandler struct {
	log *logger.Logger
}

func (h *outboxLogHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("domain event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID.String(),
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
