package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/pkg/errcode"
	"github.com/xxxsen/advisor/internal/pkg/response"
	"github.com/xxxsen/advisor/internal/service"
)

type DocumentHandler struct {
	ingest *service.IngestService
}

func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

type ingestRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url"`
	CompanyName string `json:"company_name"`
	FilingType  string `json:"filing_type"`
	FilingDate  int64  `json:"filing_date"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Title == "" {
		response.Error(c, errcode.ErrInvalid, "title required")
		return
	}
	if req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "content required")
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), service.IngestRequest{
		TenantID:    getTenantID(c),
		ClientID:    getClientID(c),
		Title:       req.Title,
		SourceType:  req.SourceType,
		SourceURL:   req.SourceURL,
		CompanyName: req.CompanyName,
		FilingType:  req.FilingType,
		FilingDate:  req.FilingDate,
		Content:     req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.Get(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := uint(0)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}
	docs, err := h.ingest.List(c.Request.Context(), getTenantID(c), c.Query("client_id"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.Delete(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
