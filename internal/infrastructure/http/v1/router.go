// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/idempotency"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/consumption"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/transfer"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Warehouses  *warehouse.Service
	Products    *product.Service
	Ledger      *ledger.Service
	Adjustments *adjustment.Service
	Events      *consumption.Hooks
	Transfers   *transfer.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services Services

	// Database backs the readiness probe; nil on the in-memory store
	Database handlers.Database

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency stores X-Idempotency-Key results; nil disables replay
	Idempotency idempotency.Store

	AppName    string
	AppVersion string
	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.AppName, cfg.AppVersion)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Actor())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(api, base, cfg.Services)
	registerStockRoutes(api, base, cfg.Services)
	registerTransferRoutes(api, base, cfg.Services)

	return router
}

// registerCatalogRoutes registers warehouse and product endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	catalogs := rg.Group("/catalog")

	wh := handlers.NewWarehouseHandler(base, svc.Warehouses)
	warehouses := catalogs.Group("/warehouses")
	{
		warehouses.GET("", wh.List)
		warehouses.POST("", wh.Create)
		warehouses.GET("/:id", wh.Get)
		warehouses.PUT("/:id", wh.Update)
		warehouses.GET("/:id/history", wh.History)
		warehouses.POST("/:id/activate", wh.Activate)
		warehouses.POST("/:id/deactivate", wh.Deactivate)
		warehouses.POST("/:id/default", wh.SetDefault)
	}

	ph := handlers.NewProductHandler(base, svc.Products)
	products := catalogs.Group("/products")
	{
		products.GET("", ph.List)
		products.POST("", ph.Create)
		products.GET("/:id", ph.Get)
		products.PUT("/:id", ph.Update)
		products.GET("/:id/history", ph.History)
	}
}

// registerStockRoutes registers ledger queries, adjustments and business events.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	sh := handlers.NewStockHandler(base, svc.Ledger, svc.Adjustments)
	eh := handlers.NewEventHandler(base, svc.Events)

	stock := rg.Group("/stock")
	{
		stock.GET("/quantity", sh.Quantity)
		stock.GET("/levels", sh.Levels)
		stock.GET("/low", sh.LowStock)
		stock.PUT("/levels/:warehouseId/:productId/min-level", sh.SetMinLevel)
		stock.GET("/movements", sh.Movements)
		stock.GET("/reconcile", sh.Reconcile)
		stock.POST("/adjustments", sh.Adjust)

		stock.POST("/events/sales", eh.Sale)
		stock.POST("/events/returns", eh.Return)
		stock.POST("/events/purchases", eh.Purchase)
	}
}

// registerTransferRoutes registers the transfer lifecycle.
func registerTransferRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	th := handlers.NewTransferHandler(base, svc.Transfers)

	transfers := rg.Group("/transfers")
	{
		transfers.GET("", th.List)
		transfers.POST("", th.Create)
		transfers.GET("/:id", th.Get)
		transfers.GET("/:id/history", th.History)
		transfers.POST("/:id/dispatch", th.Dispatch)
		transfers.POST("/:id/complete", th.Complete)
		transfers.POST("/:id/cancel", th.Cancel)
	}
}
