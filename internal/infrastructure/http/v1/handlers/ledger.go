package handlers

import (
	"github.com/gin-gonic/gin"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/http/v1/dto"
)

// LedgerHandler serves postings, lookups and month views.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// Post handles POST /companies/:companyId/transactions
func (h *LedgerHandler) Post(c *gin.Context) {
	var req dto.TransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := req.ToDomain(h.CompanyID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Post(c.Request.Context(), t)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPostingResult(res))
}

// Amend handles POST /companies/:companyId/transactions/amend
func (h *LedgerHandler) Amend(c *gin.Context) {
	var req dto.AmendRequest
	if !h.BindJSON(c, &req) {
		return
	}
	companyID := h.CompanyID(c)
	original, err := req.Original.ToDomain(companyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	replacement, err := req.Replacement.ToDomain(companyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Amend(c.Request.Context(), original, replacement)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPostingResult(res))
}

// Stock handles GET /companies/:companyId/items/:itemCode/stock?date=YYYY-MM-DD
func (h *LedgerHandler) Stock(c *gin.Context) {
	date, err := dto.ParseDate("date", c.Query("date"))
	if err != nil {
		h.Error(c, err)
		return
	}
	companyID := h.CompanyID(c)
	itemCode := c.Param("itemCode")

	q, err := h.service.StockAsOf(c.Request.Context(), companyID, itemCode, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StockResponse{
		CompanyID: companyID,
		ItemCode:  itemCode,
		Date:      date.Format(dto.DateLayout),
		Stock:     q.Int64(),
	})
}

// Month handles GET /companies/:companyId/items/:itemCode/months/:month
func (h *LedgerHandler) Month(c *gin.Context) {
	month, ok := h.BaseHandler.Month(c)
	if !ok {
		return
	}
	rep, err := h.service.MonthView(c.Request.Context(), h.CompanyID(c), c.Param("itemCode"), month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMonthReport(rep))
}

// Recalculate handles POST /companies/:companyId/items/:itemCode/months/:month/recalculate
func (h *LedgerHandler) Recalculate(c *gin.Context) {
	month, ok := h.BaseHandler.Month(c)
	if !ok {
		return
	}
	itemCode := c.Param("itemCode")
	res, err := h.service.Recalculate(c.Request.Context(), h.CompanyID(c), itemCode, month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecalculateResult(itemCode, month, res))
}
