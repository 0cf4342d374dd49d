package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Documents     *DocumentHandler
	Audit         *AuditHandler
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	scoped := api.Group("")
	scoped.Use(middleware.TenantScope())

	chat := scoped.Group("")
	chat.Use(middleware.RateLimit(deps.ChatRateLimit))
	chat.POST("/chat", deps.Chat.Chat)

	scoped.GET("/chat/conversations", deps.Chat.ListConversations)

	scoped.POST("/documents", deps.Documents.Create)
	scoped.GET("/documents", deps.Documents.List)
	scoped.GET("/documents/:id", deps.Documents.Get)
	scoped.DELETE("/documents/:id", deps.Documents.Delete)

	scoped.GET("/admin/audit-logs", deps.Audit.List)
	scoped.GET("/admin/audit-logs/:id", deps.Audit.Get)
	scoped.GET("/admin/stats", deps.Audit.Stats)
}
