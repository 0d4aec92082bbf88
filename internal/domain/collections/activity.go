package collections

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
)

// FollowUp records one contact attempt on an invoice. Append-only.
type FollowUp struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	InvoiceID     uuid.UUID
	ContactMethod Action
	Notes         string
	Actor         string
}

// ActivityLogEntry is one audit line on an invoice. Append-only.
type ActivityLogEntry struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Action    Action
	Details   string
	Actor     string
}

// NewActivityLogEntry creates a log entry stamped at now
func NewActivityLogEntry(tenantID, invoiceID uuid.UUID, action Action, details, actor string, now time.Time) (*ActivityLogEntry, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("Invoice ID cannot be empty")
	}
	if !action.IsValid() {
		return nil, shared.NewValidationError("Unknown activity action " + string(action))
	}
	return &ActivityLogEntry{
		BaseEntity: shared.NewBaseEntity(now),
		TenantID:   tenantID,
		InvoiceID:  invoiceID,
		Action:     action,
		Details:    details,
		Actor:      strings.TrimSpace(actor),
	}, nil
}

// ActionRecord is the FollowUp and ActivityLogEntry pair every collections
// action writes. The two are stored together or not at all.
type ActionRecord struct {
	FollowUp *FollowUp
	Entry    *ActivityLogEntry
}

// NewActionRecord builds the pair for a collections action. notes goes on the
// follow-up and details on the log entry; an empty details falls back to notes.
func NewActionRecord(tenantID, invoiceID uuid.UUID, action Action, notes, details, actor string, now time.Time) (*ActionRecord, error) {
	if !action.IsCollectionsAction() {
		return nil, shared.NewValidationError("Unknown collections action " + string(action))
	}
	if details == "" {
		details = notes
	}
	entry, err := NewActivityLogEntry(tenantID, invoiceID, action, details, actor, now)
	if err != nil {
		return nil, err
	}
	followUp := &FollowUp{
		BaseEntity:    shared.NewBaseEntity(now),
		TenantID:      tenantID,
		InvoiceID:     invoiceID,
		ContactMethod: action,
		Notes:         notes,
		Actor:         entry.Actor,
	}
	return &ActionRecord{FollowUp: followUp, Entry: entry}, nil
}
