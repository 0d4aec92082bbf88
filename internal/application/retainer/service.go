package retainer

import (
	"context"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RetainerService manages client retainers and exposes their draw ledger
type RetainerService struct {
	retainerRepo retainer.RetainerRepository
	drawRepo     retainer.DrawRepository
	events       shared.EventPublisher
	clock        shared.Clock
}

// NewRetainerService creates a new RetainerService. A nil clock uses the system clock.
func NewRetainerService(
	retainerRepo retainer.RetainerRepository,
	drawRepo retainer.DrawRepository,
	events shared.EventPublisher,
	clock shared.Clock,
) *RetainerService {
	return &RetainerService{
		retainerRepo: retainerRepo,
		drawRepo:     drawRepo,
		events:       events,
		clock:        shared.ClockOrDefault(clock),
	}
}

// CreateRetainer opens a retainer for a client with an initial deposit
func (s *RetainerService) CreateRetainer(ctx context.Context, tenantID, clientID uuid.UUID, initial decimal.Decimal) (*retainer.Retainer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "retainer", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrClientID, clientID.String(),
		telemetry.SpanAttrAmount, initial.String(),
	)

	r, err := retainer.NewRetainer(tenantID, clientID, initial, s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.retainerRepo.Create(ctx, r); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, r)

	logger.L(ctx).Info("retainer created",
		zap.String("retainer_id", r.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("balance", r.CurrentBalance.StringFixed(2)),
	)
	return r, nil
}

// GetRetainer returns a retainer by ID
func (s *RetainerService) GetRetainer(ctx context.Context, tenantID, id uuid.UUID) (*retainer.Retainer, error) {
	return s.retainerRepo.FindByIDForTenant(ctx, tenantID, id)
}

// GetClientRetainer returns the client's open retainer
func (s *RetainerService) GetClientRetainer(ctx context.Context, tenantID, clientID uuid.UUID) (*retainer.Retainer, error) {
	return s.retainerRepo.FindByClient(ctx, tenantID, clientID)
}

// ListRetainers returns one page of the tenant's retainers
func (s *RetainerService) ListRetainers(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]retainer.Retainer, error) {
	return s.retainerRepo.FindAllForTenant(ctx, tenantID, filter)
}

// Deposit tops up a retainer
func (s *RetainerService) Deposit(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) (*retainer.Retainer, error) {
	return s.mutate(ctx, tenantID, id, "deposit", func(r *retainer.Retainer) error {
		return r.Deposit(amount, s.clock.Now())
	})
}

// Close stops further draws against a retainer
func (s *RetainerService) Close(ctx context.Context, tenantID, id uuid.UUID) (*retainer.Retainer, error) {
	return s.mutate(ctx, tenantID, id, "close", func(r *retainer.Retainer) error {
		return r.Close(s.clock.Now())
	})
}

// Draws lists the draws of a retainer, newest first
func (s *RetainerService) Draws(ctx context.Context, tenantID, id uuid.UUID) ([]retainer.Draw, error) {
	if _, err := s.retainerRepo.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.drawRepo.FindByRetainer(ctx, tenantID, id)
}

// InvoiceDraws lists the draws credited to an invoice
func (s *RetainerService) InvoiceDraws(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]retainer.Draw, error) {
	return s.drawRepo.FindByInvoice(ctx, tenantID, invoiceID)
}

func (s *RetainerService) mutate(ctx context.Context, tenantID, id uuid.UUID, op string, fn func(r *retainer.Retainer) error) (*retainer.Retainer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "retainer", op)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrRetainerID, id.String(),
	)

	r, err := s.retainerRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := fn(r); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.retainerRepo.SaveWithLock(ctx, r); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, r)
	return r, nil
}

func (s *RetainerService) publish(ctx context.Context, r *retainer.Retainer) {
	if err := shared.PublishPending(ctx, s.events, r); err != nil {
		logger.L(ctx).Warn("failed to publish domain events", zap.Error(err))
	}
}
