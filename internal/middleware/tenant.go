package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/advisor/internal/pkg/errcode"
	"github.com/xxxsen/advisor/internal/pkg/response"
)

const (
	ContextTenantIDKey = "tenant_id"
	ContextClientIDKey = "client_id"
	ContextUserIDKey   = "user_id"
)

// TenantScope requires the tenant header on every request it guards. The
// tenant ID is the hard isolation boundary; the optional client and user IDs
// narrow scope and attribute the request.
func TenantScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			response.Error(c, errcode.ErrScopeViolation, "missing tenant")
			c.Abort()
			return
		}
		c.Set(ContextTenantIDKey, tenantID)
		if clientID := c.GetHeader("X-Client-ID"); clientID != "" {
			c.Set(ContextClientIDKey, clientID)
		}
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(ContextUserIDKey, userID)
		}
		c.Next()
	}
}
