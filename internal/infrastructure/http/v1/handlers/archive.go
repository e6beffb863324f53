package handlers

import (
	"github.com/gin-gonic/gin"

	"liquorstock/internal/domain/ledger"
	"liquorstock/internal/infrastructure/http/v1/dto"
)

// ArchiveHandler triggers monthly archiving for one company.
type ArchiveHandler struct {
	*BaseHandler
	archiver *ledger.Archiver
}

// NewArchiveHandler creates an archive handler.
func NewArchiveHandler(base *BaseHandler, archiver *ledger.Archiver) *ArchiveHandler {
	return &ArchiveHandler{BaseHandler: base, archiver: archiver}
}

// ArchiveMonth handles POST /companies/:companyId/archive/:month
func (h *ArchiveHandler) ArchiveMonth(c *gin.Context) {
	month, ok := h.Month(c)
	if !ok {
		return
	}
	res, err := h.archiver.ArchiveMonth(c.Request.Context(), h.CompanyID(c), month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromArchiveResults([]ledger.ArchiveResult{*res}))
}

// ArchiveDue handles POST /companies/:companyId/archive
func (h *ArchiveHandler) ArchiveDue(c *gin.Context) {
	res, err := h.archiver.ArchiveDue(c.Request.Context(), h.CompanyID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromArchiveResults(res))
}
