// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/http/v1/handlers"
	"liquorstock/internal/infrastructure/http/v1/middleware"
	"liquorstock/pkg/logger"
)

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Logger   *logger.Logger
	Ledger   *ledger.Service
	Archiver *ledger.Archiver

	// Idempotency enables X-Idempotency-Key handling on POST routes when set.
	Idempotency middleware.IdempotencyStore

	// Driver and HealthChecks feed /health/ready.
	Driver       string
	HealthChecks map[string]handlers.Check
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: the error handler must see errors from everything after it.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Driver, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	company := v1.Group("/companies/:" + middleware.ParamCompanyID)
	company.Use(middleware.Company())
	if cfg.Idempotency != nil {
		company.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerLedgerRoutes(company, cfg)
	registerArchiveRoutes(company, cfg)

	return router
}

func registerLedgerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	h := handlers.NewLedgerHandler(handlers.NewBaseHandler(), cfg.Ledger)

	rg.POST("/transactions", h.Post)
	rg.POST("/transactions/amend", h.Amend)

	items := rg.Group("/items/:itemCode")
	{
		items.GET("/stock", h.Stock)
		items.GET("/months/:month", h.Month)
		items.POST("/months/:month/recalculate", h.Recalculate)
	}
}

func registerArchiveRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Archiver == nil {
		return
	}
	h := handlers.NewArchiveHandler(handlers.NewBaseHandler(), cfg.Archiver)

	rg.POST("/archive", h.ArchiveDue)
	rg.POST("/archive/:month", h.ArchiveMonth)
}
