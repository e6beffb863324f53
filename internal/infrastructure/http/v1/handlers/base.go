// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liquorstock/internal/core/apperror"
	appctx "liquorstock/internal/core/context"
	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/http/v1/middleware"
	"liquorstock/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts. The JSON body is written
// by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// CompanyID returns the company resolved by middleware.Company.
func (h *BaseHandler) CompanyID(c *gin.Context) int64 {
	return appctx.GetCompanyID(c.Request.Context())
}

// Month parses the :month route parameter (YYYY-MM).
func (h *BaseHandler) Month(c *gin.Context) (ledger.StockMonth, bool) {
	raw := c.Param("month")
	m, err := ledger.ParseStockMonth(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid month").
			WithDetail("month", raw).
			WithDetail("format", "YYYY-MM"))
		return ledger.StockMonth{}, false
	}
	return m, true
}

// CompleteIdempotency stores the response against the request's idempotency
// key so a retry replays the same status and body.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	scope, store, ok := middleware.IdempotencyFromContext(c)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), scope.CompanyID, scope.Key, statusCode, contentType, response); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "key", scope.Key, "error", err)
	}
}

// Created sends 201 with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}
