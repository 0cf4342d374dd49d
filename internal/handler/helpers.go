package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/middleware"
	"github.com/xxxsen/advisor/internal/pkg/errcode"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/pkg/response"
)

func getTenantID(c *gin.Context) string {
	return c.GetString(middleware.ContextTenantIDKey)
}

func getClientID(c *gin.Context) string {
	return c.GetString(middleware.ContextClientIDKey)
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	switch {
	case errs.IsScopeViolation(err):
		response.Error(c, errcode.ErrScopeViolation, "tenant scope violation")
	case errs.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, errs.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errs.IsConflict(err):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, errs.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, errs.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "capability unavailable")
	case errors.Is(err, errs.ErrAuditWrite):
		response.Error(c, errcode.ErrAuditWrite, "audit persistence failed")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, errcode.ErrInternal, "request timed out")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
