package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/pkg/errcode"
	"github.com/xxxsen/advisor/internal/pkg/response"
	"github.com/xxxsen/advisor/internal/service"
)

type ChatHandler struct {
	queries *service.QueryService
}

func NewChatHandler(queries *service.QueryService) *ChatHandler {
	return &ChatHandler{queries: queries}
}

type chatRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id"`
	DocTypes       []string `json:"doc_types"`
	Company        string   `json:"company"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	result, err := h.queries.Submit(c.Request.Context(), service.QueryRequest{
		TenantID:       getTenantID(c),
		ClientID:       getClientID(c),
		UserID:         getUserID(c),
		ConversationID: req.ConversationID,
		Query:          req.Query,
		DocTypes:       req.DocTypes,
		CompanyFilter:  req.Company,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	limit := uint(0)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}
	convs, err := h.queries.ListConversations(c.Request.Context(), getTenantID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"conversations": convs})
}
