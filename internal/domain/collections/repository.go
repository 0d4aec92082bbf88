package collections

import (
	"context"

	"github.com/google/uuid"
)

// ActivityRepository stores follow-ups and activity log entries
type ActivityRepository interface {
	// RecordAction stores the follow-up and log entry of one action in a
	// single transaction
	RecordAction(ctx context.Context, record *ActionRecord) error

	// AppendEntry stores a standalone log entry
	AppendEntry(ctx context.Context, entry *ActivityLogEntry) error

	// FindEntriesByInvoice lists the explicit log of an invoice, oldest first
	FindEntriesByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ActivityLogEntry, error)

	// FindFollowUpsByInvoice lists the follow-ups of an invoice, oldest first
	FindFollowUpsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]FollowUp, error)

	// HasEntry reports whether the invoice has an explicit entry for action
	HasEntry(ctx context.Context, tenantID, invoiceID uuid.UUID, action Action) (bool, error)
}
