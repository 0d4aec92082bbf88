package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a sweep should visit
type TenantProvider interface {
	TenantsWithSentInvoices(ctx context.Context) ([]uuid.UUID, error)
}

// OverdueReconciler moves a tenant's past-due sent invoices to overdue
type OverdueReconciler interface {
	ReconcileOverdue(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// ReconcileExecutor runs RECONCILE_OVERDUE jobs
type ReconcileExecutor struct {
	reconciler OverdueReconciler
	logger     *zap.Logger
}

// NewReconcileExecutor creates a new executor
func NewReconcileExecutor(reconciler OverdueReconciler, logger *zap.Logger) *ReconcileExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileExecutor{reconciler: reconciler, logger: logger}
}

// Execute implements JobExecutor
func (e *ReconcileExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindReconcileOverdue {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
	moved, err := e.reconciler.ReconcileOverdue(ctx, job.TenantID)
	if err != nil {
		return err
	}
	if moved > 0 {
		e.logger.Info("Invoices marked overdue",
			zap.String("tenant_id", job.TenantID.String()),
			zap.Int("count", moved),
		)
	}
	return nil
}

// OverdueSweep periodically queues a reconciliation job for every tenant
// with sent invoices. Reads already report the effective status, so the
// sweep only keeps stored statuses and aging queries current.
type OverdueSweep struct {
	interval  time.Duration
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewOverdueSweep creates a new sweep trigger
func NewOverdueSweep(interval time.Duration, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *OverdueSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweep{
		interval:  interval,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger,
	}
}

// Start runs one sweep immediately and then one per interval
func (o *OverdueSweep) Start(ctx context.Context) error {
	if o.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", o.interval)
	}

	o.mu.Lock()
	if o.isRunning {
		o.mu.Unlock()
		return nil
	}
	o.isRunning = true
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go o.runLoop(ctx)

	o.logger.Info("Overdue sweep started", zap.Duration("interval", o.interval))
	return nil
}

// Stop stops the trigger loop
func (o *OverdueSweep) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.isRunning {
		o.mu.Unlock()
		return nil
	}
	o.isRunning = false
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("Overdue sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *OverdueSweep) runLoop(ctx context.Context) {
	defer o.wg.Done()

	o.RunOnce(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RunOnce(ctx)
		}
	}
}

// RunOnce queues one reconciliation job per tenant and returns how many were queued
func (o *OverdueSweep) RunOnce(ctx context.Context) int {
	tenantIDs, err := o.tenants.TenantsWithSentInvoices(ctx)
	if err != nil {
		o.logger.Error("Failed to list tenants for overdue sweep", zap.Error(err))
		return 0
	}

	queued := 0
	for _, tenantID := range tenantIDs {
		if err := o.scheduler.ScheduleReconcile([]uuid.UUID{tenantID}); err != nil {
			o.logger.Warn("Failed to queue overdue reconciliation",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		queued++
	}
	o.logger.Debug("Overdue sweep queued", zap.Int("tenants", queued))
	return queued
}
