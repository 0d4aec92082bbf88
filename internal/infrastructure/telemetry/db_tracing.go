package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in span statements
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string
}

// DefaultDBTracingConfig returns the defaults: disabled, no variables, 200ms threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin and a slow query marker on db.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { markSlowQuery(tx, cfg.SlowQueryThresh) }

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("pf_timing:before_create", before)},
		{"query", cb.Query().Before("gorm:query").Register("pf_timing:before_query", before)},
		{"update", cb.Update().Before("gorm:update").Register("pf_timing:before_update", before)},
		{"row", cb.Row().Before("gorm:row").Register("pf_timing:before_row", before)},
		{"raw", cb.Raw().Before("gorm:raw").Register("pf_timing:before_raw", before)},
		{"create", cb.Create().After("gorm:create").Register("pf_timing:after_create", after)},
		{"query", cb.Query().After("gorm:query").Register("pf_timing:after_query", after)},
		{"update", cb.Update().After("gorm:update").Register("pf_timing:after_update", after)},
		{"row", cb.Row().After("gorm:row").Register("pf_timing:after_row", after)},
		{"raw", cb.Raw().After("gorm:raw").Register("pf_timing:after_raw", after)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return r.err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
