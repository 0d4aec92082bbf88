package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	tenantIDKey  contextKey = "tenant_id"
	actorKey     contextKey = "actor"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithTenantID stores the organization the request acts for
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithActor stores the name recorded on follow-ups and activity entries
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetTenantID retrieves the tenant ID from context
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// GetActor retrieves the acting user from context
func GetActor(ctx context.Context) string {
	return stringValue(ctx, actorKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID returns the trace ID of the active span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns the context logger enriched with trace, request, tenant and actor
// fields. Usage: logger.L(ctx).Info("invoice sent", zap.String("invoice_id", id))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)

	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if tenantID := GetTenantID(ctx); tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if actor := GetActor(ctx); actor != "" {
		fields = append(fields, zap.String("actor", actor))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
