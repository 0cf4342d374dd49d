package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/pkg/response"
	"github.com/xxxsen/advisor/internal/repo"
	"github.com/xxxsen/advisor/internal/service"
)

type AuditHandler struct {
	audits *service.AuditService
}

func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

func (h *AuditHandler) List(c *gin.Context) {
	filter := repo.AuditFilter{
		Workflow:    c.Query("workflow"),
		Confidence:  c.Query("confidence"),
		FlaggedOnly: c.Query("flagged") == "true",
		Since:       parseInt64(c.Query("since")),
		Until:       parseInt64(c.Query("until")),
		Page:        int(parseInt64(c.Query("page"))),
		PerPage:     int(parseInt64(c.Query("per_page"))),
	}
	entries, total, err := h.audits.List(c.Request.Context(), getTenantID(c), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"entries": entries, "total": total})
}

func (h *AuditHandler) Get(c *gin.Context) {
	entry, err := h.audits.Get(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.audits.Stats(c.Request.Context(), getTenantID(c), parseInt64(c.Query("since")))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func parseInt64(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
