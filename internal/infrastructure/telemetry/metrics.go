package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // default 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates a MeterProvider exporting over OTLP gRPC.
// When disabled, Meter falls back to the global no-op meter.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}

	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exportInterval := cfg.ExportInterval
	if exportInterval == 0 {
		exportInterval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", exportInterval),
	)
	return mp, nil
}

// Shutdown flushes pending metrics and stops the provider.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// Counter wraps a monotonically increasing int64 instrument.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new Counter metric.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by value.
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1.
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Metric attribute keys
var (
	AttrTenantID      = attribute.Key("tenant_id")
	AttrAction        = attribute.Key("collections_action")
	AttrAgingTier     = attribute.Key("aging_tier")
	AttrPaymentMethod = attribute.Key("payment_method")
	AttrDrawOutcome   = attribute.Key("draw_outcome")

	AttrHTTPMethod     = attribute.Key("http_method")
	AttrHTTPRoute      = attribute.Key("http_route")
	AttrHTTPStatusCode = attribute.Key("http_status_code")
)
