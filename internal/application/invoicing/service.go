package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InvoiceService orchestrates the invoice lifecycle: creation with an optional
// retainer draw, status transitions, line item edits and overdue reconciliation.
type InvoiceService struct {
	invoiceRepo  invoicing.InvoiceRepository
	retainerRepo retainer.RetainerRepository
	drawRepo     retainer.DrawRepository
	txManager    shared.TransactionManager
	events       shared.EventPublisher
	clock        shared.Clock
	metrics      *telemetry.BillingMetrics
	drawPolicy   retainer.DrawPolicy
	defaultTerms invoicing.PaymentTerms
}

// Option configures an InvoiceService
type Option func(*InvoiceService)

// WithClock overrides the system clock
func WithClock(clock shared.Clock) Option {
	return func(s *InvoiceService) {
		s.clock = shared.ClockOrDefault(clock)
	}
}

// WithMetrics records business metrics
func WithMetrics(m *telemetry.BillingMetrics) Option {
	return func(s *InvoiceService) {
		s.metrics = m
	}
}

// WithDrawPolicy sets what happens when a requested retainer draw is not fully
// available. Default is clamp.
func WithDrawPolicy(policy retainer.DrawPolicy) Option {
	return func(s *InvoiceService) {
		if policy.IsValid() {
			s.drawPolicy = policy
		}
	}
}

// WithDefaultPaymentTerms sets the terms used when a request names none
func WithDefaultPaymentTerms(terms invoicing.PaymentTerms) Option {
	return func(s *InvoiceService) {
		if terms.IsValid() {
			s.defaultTerms = terms
		}
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoicing.InvoiceRepository,
	retainerRepo retainer.RetainerRepository,
	drawRepo retainer.DrawRepository,
	txManager shared.TransactionManager,
	events shared.EventPublisher,
	opts ...Option,
) *InvoiceService {
	s := &InvoiceService{
		invoiceRepo:  invoiceRepo,
		retainerRepo: retainerRepo,
		drawRepo:     drawRepo,
		txManager:    txManager,
		events:       events,
		clock:        shared.SystemClock{},
		drawPolicy:   retainer.DrawPolicyClamp,
		defaultTerms: invoicing.TermsNet30,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time
func (s *InvoiceService) Now() time.Time {
	return s.clock.Now()
}

// CreateInvoice stores a new invoice and then, when requested, draws from the
// client's retainer in a separate transaction. A failed draw leaves the
// invoice in place and is reported in CreateInvoiceResult.DrawError.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*CreateInvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create_invoice")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrClientID, req.ClientID.String(),
	)

	now := s.clock.Now()
	number, err := s.invoiceRepo.NextInvoiceNumber(ctx, tenantID, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	params := invoicing.NewInvoiceParams{
		TenantID:      tenantID,
		InvoiceNumber: number,
		ClientID:      req.ClientID,
		ClientName:    req.ClientName,
		ProjectID:     req.ProjectID,
		ProjectName:   req.ProjectName,
		LineItems:     ToLineItems(req.LineItems),
		PaymentTerms:  req.PaymentTerms,
		DueDate:       req.DueDate,
		InitialStatus: req.InitialStatus,
	}
	if params.PaymentTerms == "" {
		params.PaymentTerms = s.defaultTerms
	}
	if req.InvoiceDate != nil {
		params.InvoiceDate = *req.InvoiceDate
	}

	inv, err := invoicing.NewInvoice(params, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber,
	)
	s.metrics.RecordInvoiceCreated(ctx, tenantID)
	s.publish(ctx, inv)

	result := &CreateInvoiceResult{Invoice: inv}
	if req.RetainerAmount != nil && req.RetainerAmount.IsPositive() {
		s.applyRetainerDraw(ctx, inv, req, result)
		if result.DrawError != nil {
			telemetry.AddEvent(span, "retainer_draw_failed", "error", result.DrawError.Error())
		}
	}

	logger.L(ctx).Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("subtotal", inv.Subtotal.StringFixed(2)),
		zap.String("retainer_applied", result.Invoice.RetainerApplied.StringFixed(2)),
	)
	return result, nil
}

// applyRetainerDraw authorizes and applies the requested draw, then credits the
// invoice. Retainer, draw record and invoice are written in one transaction.
func (s *InvoiceService) applyRetainerDraw(ctx context.Context, inv *invoicing.Invoice, req CreateInvoiceRequest, result *CreateInvoiceResult) {
	now := s.clock.Now()
	var (
		auth retainer.Authorization
		draw *retainer.Draw
		ret  *retainer.Retainer
	)

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.findRetainer(ctx, inv.TenantID, inv.ClientID, req.RetainerID)
		if err != nil {
			return err
		}
		if ret.ClientID != inv.ClientID {
			return shared.NewValidationError("Retainer belongs to a different client")
		}

		auth, err = ret.AuthorizeDraw(*req.RetainerAmount, inv.Subtotal, s.drawPolicy)
		if err != nil {
			return err
		}
		if !auth.Amount.IsPositive() {
			return shared.NewDomainError(shared.CodeInsufficientBalance, "Retainer has no balance available")
		}

		draw, err = ret.ApplyDraw(inv.ID, auth.Amount, now)
		if err != nil {
			return err
		}
		// The snapshot may be stale; the debit checks the stored balance.
		if err := s.retainerRepo.Debit(ctx, ret, auth.Amount); err != nil {
			return err
		}
		ret.RebaseDraw(draw, ret.CurrentBalance)
		if err := s.drawRepo.Create(ctx, draw); err != nil {
			return err
		}
		if err := inv.ApplyRetainerCredit(auth.Amount, now); err != nil {
			return err
		}
		return s.invoiceRepo.SaveWithLock(ctx, inv)
	})

	if err != nil {
		result.DrawError = err
		outcome := telemetry.DrawFailed
		if shared.IsCode(err, shared.CodeInsufficientBalance) {
			outcome = telemetry.DrawRejected
		}
		s.metrics.RecordRetainerDraw(ctx, inv.TenantID, outcome, *req.RetainerAmount)
		logger.L(ctx).Warn("retainer draw failed, invoice kept without credit",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("requested", req.RetainerAmount.StringFixed(2)),
			zap.Error(err),
		)
		// The in-memory invoice may hold a credit that was rolled back.
		if stored, loadErr := s.invoiceRepo.FindByIDForTenant(ctx, inv.TenantID, inv.ID); loadErr == nil {
			result.Invoice = stored
		}
		return
	}

	result.Draw = draw
	result.Authorization = &auth
	outcome := telemetry.DrawApplied
	if auth.Clamped {
		outcome = telemetry.DrawClamped
	}
	s.metrics.RecordRetainerDraw(ctx, inv.TenantID, outcome, auth.Amount)
	s.publish(ctx, ret)
	s.publish(ctx, inv)
}

func (s *InvoiceService) findRetainer(ctx context.Context, tenantID, clientID uuid.UUID, retainerID *uuid.UUID) (*retainer.Retainer, error) {
	if retainerID != nil {
		return s.retainerRepo.FindByIDForTenant(ctx, tenantID, *retainerID)
	}
	return s.retainerRepo.FindByClient(ctx, tenantID, clientID)
}

// GetInvoice returns an invoice with its effective status as of now
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, id uuid.UUID) (InvoiceView, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return InvoiceView{}, err
	}
	return NewInvoiceView(inv, s.clock.Now()), nil
}

// ListInvoices returns one page of invoices and the total match count
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]InvoiceView, int64, error) {
	invoices, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.invoiceRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	views := make([]InvoiceView, len(invoices))
	for i := range invoices {
		views[i] = NewInvoiceView(&invoices[i], now)
	}
	return views, total, nil
}

// MarkReady moves an invoice to ready_to_send
func (s *InvoiceService) MarkReady(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "mark_ready", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.MarkReady(now)
	})
}

// MarkNeedsReview flags an invoice for review
func (s *InvoiceService) MarkNeedsReview(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "mark_needs_review", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.MarkNeedsReview(now)
	})
}

// ReturnToDraft moves an unsent invoice back to draft
func (s *InvoiceService) ReturnToDraft(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "return_to_draft", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.ReturnToDraft(now)
	})
}

// Send marks the invoice as sent. Delivery itself happens elsewhere.
func (s *InvoiceService) Send(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "send", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.Send(now)
	})
}

// RecordPayment marks a sent or overdue invoice as paid
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, id uuid.UUID, req RecordPaymentRequest) (*invoicing.Invoice, error) {
	inv, err := s.mutate(ctx, tenantID, id, "record_payment", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.RecordPayment(req.Amount, req.Method, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordInvoicePaid(ctx, tenantID, inv.PaymentMethod)
	return inv, nil
}

// PlaceLegalHold moves a non-terminal invoice to legal_hold
func (s *InvoiceService) PlaceLegalHold(ctx context.Context, tenantID, id uuid.UUID, reason string) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "place_legal_hold", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.PlaceLegalHold(reason, now)
	})
}

// UpdateLineItems replaces the line items of an invoice in an editing state
func (s *InvoiceService) UpdateLineItems(ctx context.Context, tenantID, id uuid.UUID, items []LineItemInput) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "update_line_items", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.ReplaceLineItems(ToLineItems(items), now)
	})
}

// EditInPlace corrects the line items of a sent or overdue invoice without
// changing its status
func (s *InvoiceService) EditInPlace(ctx context.Context, tenantID, id uuid.UUID, items []LineItemInput) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "edit_in_place", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.EditInPlace(ToLineItems(items), now)
	})
}

// SetDueDate changes the due date of a non-terminal invoice
func (s *InvoiceService) SetDueDate(ctx context.Context, tenantID, id uuid.UUID, dueDate *time.Time) (*invoicing.Invoice, error) {
	return s.mutate(ctx, tenantID, id, "set_due_date", func(inv *invoicing.Invoice, now time.Time) error {
		return inv.SetDueDate(dueDate, now)
	})
}

// mutate loads the invoice, reconciles its overdue status, applies fn and
// writes it back with a compare-and-swap on the version.
func (s *InvoiceService) mutate(
	ctx context.Context,
	tenantID, id uuid.UUID,
	op string,
	fn func(inv *invoicing.Invoice, now time.Time) error,
) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", op)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, id.String(),
	)

	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	from := inv.Status
	inv.ReconcileOverdue(now)
	if err := fn(inv, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, inv)

	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceStatus, inv.Status.String())
	logger.L(ctx).Info("invoice updated",
		zap.String("operation", op),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("from_status", from.String()),
		zap.String("to_status", inv.Status.String()),
	)
	return inv, nil
}

// ReconcileOverdue stores the overdue status of every sent invoice that is
// past due. Invoices changed concurrently are skipped; the next run picks
// them up. It returns the number of invoices updated.
func (s *InvoiceService) ReconcileOverdue(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "reconcile_overdue")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	invoices, err := s.invoiceRepo.FindCollectible(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	now := s.clock.Now()
	updated := 0
	for i := range invoices {
		inv := &invoices[i]
		if !inv.ReconcileOverdue(now) {
			continue
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
			if shared.IsCode(err, shared.CodeConcurrencyConflict) {
				logger.L(ctx).Debug("overdue reconciliation skipped, invoice changed concurrently",
					zap.String("invoice_id", inv.ID.String()))
				continue
			}
			telemetry.RecordError(span, err)
			return updated, fmt.Errorf("reconcile invoice %s: %w", inv.InvoiceNumber, err)
		}
		s.publish(ctx, inv)
		updated++
	}

	telemetry.SetAttribute(span, "reconciled_count", updated)
	return updated, nil
}

// AgingReport classifies the tenant's sent and overdue invoices into tiers as of now
func (s *InvoiceService) AgingReport(ctx context.Context, tenantID uuid.UUID) (invoicing.AgingReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "aging_report")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	invoices, err := s.invoiceRepo.FindCollectible(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return invoicing.AgingReport{}, err
	}

	refs := make([]*invoicing.Invoice, len(invoices))
	for i := range invoices {
		refs[i] = &invoices[i]
	}
	report := invoicing.ClassifyAging(refs, s.clock.Now())
	telemetry.SetAttribute(span, "aging_count", report.Count)
	return report, nil
}

func (s *InvoiceService) publish(ctx context.Context, agg shared.AggregateRoot) {
	if err := shared.PublishPending(ctx, s.events, agg); err != nil {
		logger.L(ctx).Warn("failed to publish domain events", zap.Error(err))
	}
}
