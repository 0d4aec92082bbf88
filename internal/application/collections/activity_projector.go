package collections

import (
	"context"
	"fmt"

	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvoiceActivityProjector turns invoice lifecycle events into explicit
// activity log entries: sent, paid (not write-offs) and legal hold. It skips
// an action the invoice already has an entry for, so redelivered events do
// not duplicate the log.
type InvoiceActivityProjector struct {
	activityRepo collections.ActivityRepository
	logger       *zap.Logger
}

// NewInvoiceActivityProjector creates a new projector
func NewInvoiceActivityProjector(activityRepo collections.ActivityRepository, logger *zap.Logger) *InvoiceActivityProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceActivityProjector{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (p *InvoiceActivityProjector) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceSent,
		invoicing.EventTypeInvoicePaid,
		invoicing.EventTypeInvoiceStatusChanged,
	}
}

// Handle records the activity entry for one event
func (p *InvoiceActivityProjector) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		action  collections.Action
		details string
	)
	switch e := event.(type) {
	case *invoicing.InvoiceSentEvent:
		action, details = collections.ActionSent, "Invoice sent"
	case *invoicing.InvoicePaidEvent:
		action, details = collections.ActionPaid, collections.PaymentDetails(e.PaymentMethod, e.PaymentAmount)
	case *invoicing.InvoiceStatusChangedEvent:
		if e.To != invoicing.StatusLegalHold {
			return nil
		}
		action, details = collections.ActionLegalHold, "Placed on legal hold"
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	exists, err := p.activityRepo.HasEntry(ctx, event.TenantID(), event.AggregateID(), action)
	if err != nil {
		return fmt.Errorf("failed to check activity log: %w", err)
	}
	if exists {
		p.logger.Debug("activity entry already recorded, skipping",
			zap.String("invoice_id", event.AggregateID().String()),
			zap.String("action", action.String()),
		)
		return nil
	}

	entry, err := collections.NewActivityLogEntry(event.TenantID(), event.AggregateID(), action, details, "", event.OccurredAt())
	if err != nil {
		return err
	}
	if err := p.activityRepo.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

var _ shared.EventHandler = (*InvoiceActivityProjector)(nil)
