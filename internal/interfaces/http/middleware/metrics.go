package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Bucket boundaries in seconds for request latency
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}")
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency distribution in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics counts requests per route and status and records latency. A nil
// meter or an instrument registration failure yields a pass-through handler.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		metrics.activeRequests.Add(ctx, 1)

		c.Next()

		metrics.activeRequests.Add(ctx, -1)

		// Route pattern, not the raw path, to bound cardinality
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		baseAttrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		requestAttrs := append([]attribute.KeyValue{
			telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()),
		}, baseAttrs...)
		if tenantID := GetTenantID(c); tenantID != "" {
			requestAttrs = append(requestAttrs, telemetry.AttrTenantID.String(tenantID))
		}

		metrics.requestTotal.Inc(ctx, requestAttrs...)
		metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(baseAttrs...))
	}
}
