package collections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultActionLockTTL bounds how long one invoice stays locked by an action
const DefaultActionLockTTL = 30 * time.Second

// CollectionsService runs reminders, demand letters, write-offs and notes.
// Each action holds a per-invoice lock and writes the invoice status change
// and its FollowUp/ActivityLogEntry pair in one transaction.
type CollectionsService struct {
	invoiceRepo  invoicing.InvoiceRepository
	activityRepo collections.ActivityRepository
	txManager    shared.TransactionManager
	locker       shared.Locker
	templates    collections.TemplateSource
	events       shared.EventPublisher
	clock        shared.Clock
	metrics      *telemetry.BillingMetrics
	companyName  string
	enforceTier  bool
	lockTTL      time.Duration
}

// Option configures a CollectionsService
type Option func(*CollectionsService)

// WithClock overrides the system clock
func WithClock(clock shared.Clock) Option {
	return func(s *CollectionsService) {
		s.clock = shared.ClockOrDefault(clock)
	}
}

// WithMetrics records business metrics
func WithMetrics(m *telemetry.BillingMetrics) Option {
	return func(s *CollectionsService) {
		s.metrics = m
	}
}

// WithTemplateSource sets where demand letter templates come from
func WithTemplateSource(src collections.TemplateSource) Option {
	return func(s *CollectionsService) {
		if src != nil {
			s.templates = src
		}
	}
}

// WithCompanyName sets the sender name merged into demand letters
func WithCompanyName(name string) Option {
	return func(s *CollectionsService) {
		s.companyName = name
	}
}

// WithTierEnforcement rejects actions the invoice's aging tier does not allow
func WithTierEnforcement(enforce bool) Option {
	return func(s *CollectionsService) {
		s.enforceTier = enforce
	}
}

// WithLockTTL sets the per-invoice action lock TTL
func WithLockTTL(ttl time.Duration) Option {
	return func(s *CollectionsService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewCollectionsService creates a new CollectionsService
func NewCollectionsService(
	invoiceRepo invoicing.InvoiceRepository,
	activityRepo collections.ActivityRepository,
	txManager shared.TransactionManager,
	locker shared.Locker,
	events shared.EventPublisher,
	opts ...Option,
) *CollectionsService {
	s := &CollectionsService{
		invoiceRepo:  invoiceRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		locker:       locker,
		events:       events,
		templates:    collections.StaticTemplateSource(""),
		clock:        shared.SystemClock{},
		lockTTL:      DefaultActionLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowedActions returns the actions available on an invoice as of now
func (s *CollectionsService) AllowedActions(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ActionsView, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	tier, days := invoicing.TierOf(inv, now)
	return &ActionsView{
		Invoice:         inv,
		EffectiveStatus: inv.EffectiveStatus(now),
		Tier:            tier,
		DaysOverdue:     days,
		Actions:         collections.AllowedActions(inv, now),
		Enforced:        s.enforceTier,
	}, nil
}

// Timeline returns the merged activity timeline of an invoice, newest first
func (s *CollectionsService) Timeline(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.TimelineEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collections", "timeline")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	entries, err := s.activityRepo.FindEntriesByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return collections.MergeTimeline(inv, entries), nil
}

// FollowUps lists the contact attempts recorded on an invoice, oldest first
func (s *CollectionsService) FollowUps(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.FollowUp, error) {
	if _, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
		return nil, err
	}
	return s.activityRepo.FindFollowUpsByInvoice(ctx, tenantID, invoiceID)
}

// SendReminder records a reminder email request. The invoice status is not changed.
func (s *CollectionsService) SendReminder(ctx context.Context, tenantID, invoiceID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	return s.perform(ctx, tenantID, invoiceID, collections.ActionReminderEmail, req.Actor,
		func(_ *invoicing.Invoice, _ time.Time, result *ActionResult) (string, string, error) {
			return req.Notes, "", nil
		})
}

// PreviewDemandLetter merges the demand letter for an invoice without
// recording anything. Placeholders the merge could not fill are reported.
func (s *CollectionsService) PreviewDemandLetter(ctx context.Context, tenantID, invoiceID uuid.UUID, template string) (*DemandLetterPreview, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collections", "preview_demand_letter")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	now := s.clock.Now()
	content, err := s.mergeLetter(ctx, inv, template, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tier, days := invoicing.TierOf(inv, now)
	return &DemandLetterPreview{
		InvoiceID:   inv.ID.String(),
		Content:     content,
		Unmatched:   collections.UnmatchedPlaceholders(content),
		Tier:        tier,
		DaysOverdue: days,
		Eligible:    collections.AllowedActions(inv, now).Contains(collections.ActionDemandLetter),
	}, nil
}

// SendDemandLetter merges and records a demand letter. The full letter is
// stored on both the FollowUp and the ActivityLogEntry.
func (s *CollectionsService) SendDemandLetter(ctx context.Context, tenantID, invoiceID uuid.UUID, req DemandLetterRequest) (*ActionResult, error) {
	return s.perform(ctx, tenantID, invoiceID, collections.ActionDemandLetter, req.Actor,
		func(inv *invoicing.Invoice, now time.Time, result *ActionResult) (string, string, error) {
			letter, err := s.mergeLetter(ctx, inv, req.Template, now)
			if err != nil {
				return "", "", err
			}
			result.Unmatched = collections.UnmatchedPlaceholders(letter)
			if len(result.Unmatched) > 0 {
				logger.L(ctx).Warn("demand letter has unmatched placeholders",
					zap.String("invoice_id", inv.ID.String()),
					zap.Strings("placeholders", result.Unmatched),
				)
			}
			return letter, letter, nil
		})
}

// WriteOff closes the invoice as paid with no recovery and records the
// written-off amount. The status write is a compare-and-swap on the version,
// so a racing payment or second write-off fails instead of double-processing.
func (s *CollectionsService) WriteOff(ctx context.Context, tenantID, invoiceID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	result, err := s.perform(ctx, tenantID, invoiceID, collections.ActionWriteOff, req.Actor,
		func(inv *invoicing.Invoice, now time.Time, result *ActionResult) (string, string, error) {
			amount, err := inv.WriteOff(now)
			if err != nil {
				return "", "", err
			}
			result.WrittenOff = &amount
			details := "Written off " + valueobject.FormatUSD(amount)
			if req.Notes != "" {
				details += ": " + req.Notes
			}
			return req.Notes, details, nil
		})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordWriteOff(ctx, tenantID, *result.WrittenOff)
	return result, nil
}

// AddNote records a manual note. Notes are allowed at any status.
func (s *CollectionsService) AddNote(ctx context.Context, tenantID, invoiceID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	if req.Notes == "" {
		return nil, shared.NewValidationError("Note text cannot be empty")
	}
	return s.perform(ctx, tenantID, invoiceID, collections.ActionNote, req.Actor,
		func(_ *invoicing.Invoice, _ time.Time, _ *ActionResult) (string, string, error) {
			return req.Notes, "", nil
		})
}

// actionFunc applies the action to the invoice and returns the FollowUp notes
// and the ActivityLogEntry details
type actionFunc func(inv *invoicing.Invoice, now time.Time, result *ActionResult) (notes, details string, err error)

// perform runs one collections action under the invoice's action lock
func (s *CollectionsService) perform(
	ctx context.Context,
	tenantID, invoiceID uuid.UUID,
	action collections.Action,
	actor string,
	apply actionFunc,
) (*ActionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collections", action.String())
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrAction, action.String(),
	)

	lock, err := s.locker.Obtain(ctx, actionLockKey(tenantID, invoiceID), s.lockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.L(ctx).Warn("failed to release action lock",
				zap.String("invoice_id", invoiceID.String()), zap.Error(err))
		}
	}()

	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	inv.ReconcileOverdue(now)
	if err := collections.CheckAction(inv, action, now, s.enforceTier); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tier, days := invoicing.TierOf(inv, now)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgingTier, string(tier),
		telemetry.SpanAttrDaysOverdue, days,
	)
	result := &ActionResult{Invoice: inv, Tier: tier, DaysOverdue: days}

	notes, details, err := apply(inv, now, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	record, err := collections.NewActionRecord(tenantID, invoiceID, action, notes, details, actor, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// Pending events mean the invoice itself changed and must be written too.
	invoiceChanged := len(inv.GetDomainEvents()) > 0
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if invoiceChanged {
			if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
				return err
			}
		}
		return s.activityRepo.RecordAction(ctx, record)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s failed: %w", action.Label(), err)
	}

	if err := shared.PublishPending(ctx, s.events, inv); err != nil {
		logger.L(ctx).Warn("failed to publish domain events", zap.Error(err))
	}
	s.metrics.RecordCollectionsAction(ctx, tenantID, action.String(), string(tier))

	result.FollowUp = record.FollowUp
	result.Entry = record.Entry
	logger.L(ctx).Info("collections action recorded",
		zap.String("action", action.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("invoice_status", inv.Status.String()),
		zap.String("aging_tier", string(tier)),
		zap.Int("days_overdue", days),
	)
	return result, nil
}

func (s *CollectionsService) mergeLetter(ctx context.Context, inv *invoicing.Invoice, template string, now time.Time) (string, error) {
	if template == "" {
		var err error
		template, err = s.templates.DemandLetterTemplate(ctx, inv.TenantID)
		if err != nil {
			return "", fmt.Errorf("load demand letter template: %w", err)
		}
	}
	data := collections.NewDemandLetterData(inv, s.companyName, now)
	return collections.MergeDemandLetter(template, data), nil
}

func actionLockKey(tenantID, invoiceID uuid.UUID) string {
	return "invoice:" + tenantID.String() + ":" + invoiceID.String()
}
