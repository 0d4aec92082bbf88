package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinMiddleware logs each request and attaches a request-scoped logger to the
// request context so services can reach it through L(ctx).
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		reqLogger := base.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		if requestID := GetRequestID(ctx); requestID != "" {
			reqLogger = reqLogger.With(zap.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(WithContext(ctx, reqLogger))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if tenantID := GetTenantID(c.Request.Context()); tenantID != "" {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 and logs it with the stack
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				base.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Internal server error"},
				})
			}
		}()
		c.Next()
	}
}
