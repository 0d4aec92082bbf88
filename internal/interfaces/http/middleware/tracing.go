// Package middleware provides HTTP middleware for the billing API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength is the maximum accepted length of a client-supplied request ID
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "permitflow-billing",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin server-span middleware. Span names
// follow "HTTP METHOD route_pattern".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector copies request identity onto the active span. It
// must run after Tracing, RequestID and TenantMiddleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := c.GetString(RequestIDKey); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if tenantID := GetTenantID(c); tenantID != "" {
				span.SetAttributes(attribute.String("tenant_id", tenantID))
			}
			if actor := GetActor(c); actor != "" {
				span.SetAttributes(attribute.String("actor", actor))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the span as failed for 4xx and 5xx responses
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}
		message := "Client Error"
		switch {
		case statusCode >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		case statusCode == http.StatusConflict:
			message = "Conflict"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
