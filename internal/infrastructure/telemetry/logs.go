package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds log export configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider wraps the OpenTelemetry LoggerProvider with lifecycle management.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
	config   LogsConfig
}

// NewLoggerProvider creates a LoggerProvider exporting over OTLP gRPC.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{logger: logger, config: cfg}

	if !cfg.Enabled {
		logger.Info("OTEL logs disabled, using no-op logger provider")
		return lp, nil
	}

	exporterOpts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry LoggerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
	)
	return lp, nil
}

// Shutdown flushes pending records and stops the provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

// IsEnabled returns whether OTEL logs are enabled.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp != nil && lp.config.Enabled && lp.provider != nil
}

// BridgeLogger returns a logger that writes to base and, when export is
// enabled, to the OTEL collector at level and above.
func BridgeLogger(base *zap.Logger, lp *LoggerProvider, level zapcore.Level) *zap.Logger {
	if !lp.IsEnabled() {
		return base
	}
	otelCore := otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider))
	filtered := &levelFilterCore{Core: otelCore, minLevel: level}
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, filtered)
	}))
}

// levelFilterCore drops entries below minLevel. The otelzap core has no level of its own.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}
