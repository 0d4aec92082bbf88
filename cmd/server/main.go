package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	collectionsapp "github.com/permitflow/backend/internal/application/collections"
	invoicingapp "github.com/permitflow/backend/internal/application/invoicing"
	retainerapp "github.com/permitflow/backend/internal/application/retainer"
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/cache"
	"github.com/permitflow/backend/internal/infrastructure/config"
	"github.com/permitflow/backend/internal/infrastructure/event"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/persistence"
	"github.com/permitflow/backend/internal/infrastructure/scheduler"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"github.com/permitflow/backend/internal/interfaces/http/handler"
	"github.com/permitflow/backend/internal/interfaces/http/middleware"
	"github.com/permitflow/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const meterName = "github.com/permitflow/backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log := telemetry.BridgeLogger(baseLog, loggerProvider, logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	log.Info("Starting billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("version", Version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	meter := meterProvider.Meter(meterName)
	billingMetrics, err := telemetry.NewBillingMetrics(meter)
	if err != nil {
		log.Warn("Billing metrics unavailable", zap.Error(err))
		billingMetrics = nil
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, persistence.Options{
		LogLevel: cfg.Log.Level,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	txManager := persistence.NewGormTransactionManager(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	retainerRepo := persistence.NewGormRetainerRepository(db.DB)
	drawRepo := persistence.NewGormDrawRepository(db.DB)
	activityRepo := persistence.NewGormActivityRepository(db.DB)

	locker, redisClient, err := cache.NewLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateLocker(ctx)
	if err != nil {
		log.Fatal("Failed to initialize action lock", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var idempotencyStore middleware.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = cache.NewRedisIdempotencyStore(redisClient, "")
	} else {
		memoryStore := cache.NewInMemoryIdempotencyStore()
		defer func() { _ = memoryStore.Close() }()
		idempotencyStore = memoryStore
	}

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(collectionsapp.NewInvoiceActivityProjector(activityRepo, log))

	invoiceService := invoicingapp.NewInvoiceService(
		invoiceRepo, retainerRepo, drawRepo, txManager, eventBus,
		invoicingapp.WithMetrics(billingMetrics),
		invoicingapp.WithDrawPolicy(retainer.DrawPolicy(cfg.Collections.DrawPolicy)),
		invoicingapp.WithDefaultPaymentTerms(invoicing.PaymentTerms(cfg.Collections.DefaultPaymentTerms)),
	)
	collectionsService := collectionsapp.NewCollectionsService(
		invoiceRepo, activityRepo, txManager, locker, eventBus,
		collectionsapp.WithMetrics(billingMetrics),
		collectionsapp.WithTemplateSource(collections.StaticTemplateSource(cfg.Collections.DemandLetterTemplate)),
		collectionsapp.WithCompanyName(cfg.Collections.CompanyName),
		collectionsapp.WithTierEnforcement(cfg.Collections.EnforceTierEligibility),
		collectionsapp.WithLockTTL(cfg.Collections.ActionLockTTL),
	)
	retainerService := retainerapp.NewRetainerService(retainerRepo, drawRepo, eventBus, shared.SystemClock{})

	var (
		jobs  *scheduler.Scheduler
		sweep *scheduler.OverdueSweep
	)
	if cfg.Scheduler.Enabled {
		jobs = scheduler.NewScheduler(scheduler.Config{
			Enabled:           true,
			SweepInterval:     cfg.Scheduler.SweepInterval,
			MaxConcurrentJobs: cfg.Scheduler.Workers,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, scheduler.NewReconcileExecutor(invoiceService, log), log)
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start job scheduler", zap.Error(err))
		}
		sweep = scheduler.NewOverdueSweep(cfg.Scheduler.SweepInterval, jobs, invoiceRepo, log)
		if err := sweep.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue sweep", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log

	// Order matters: request ID and logger first, tracing before tenant so
	// the injector sees both.
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TenantMiddlewareWithConfig(tenantConfig),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meter),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.CORSWithConfig(corsConfig),
		middleware.Secure(),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, Version).
		AddCheck("database", func(context.Context) error { return db.Ping() })
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	actionGuards := []gin.HandlerFunc{
		middleware.Idempotency(idempotencyStore, cfg.Collections.IdempotencyTTL, log),
	}

	r := router.NewRouter(engine)
	r.Register(router.Billing(router.BillingHandlers{
		Invoice:          handler.NewInvoiceHandler(invoiceService),
		Collections:      handler.NewCollectionsHandler(collectionsService),
		Retainer:         handler.NewRetainerHandler(retainerService),
		System:           systemHandler,
		ActionMiddleware: actionGuards,
	})...)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			log.Warn("Overdue sweep did not stop cleanly", zap.Error(err))
		}
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Warn("Job scheduler did not stop cleanly", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
