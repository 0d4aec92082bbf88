package retainer

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Retainer event types
const (
	EventTypeRetainerCreated     = "RetainerCreated"
	EventTypeRetainerDrawApplied = "RetainerDrawApplied"
	EventTypeRetainerDeposited   = "RetainerDeposited"
)

const aggregateTypeRetainer = "Retainer"

// RetainerCreatedEvent is published when a retainer is opened
type RetainerCreatedEvent struct {
	shared.BaseDomainEvent
	ClientID       uuid.UUID       `json:"client_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// NewRetainerCreatedEvent creates a new RetainerCreatedEvent
func NewRetainerCreatedEvent(r *Retainer, now time.Time) *RetainerCreatedEvent {
	return &RetainerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRetainerCreated, aggregateTypeRetainer, r.ID, r.TenantID, now),
		ClientID:        r.ClientID,
		InitialBalance:  r.CurrentBalance,
	}
}

// RetainerDrawAppliedEvent is published when an invoice draws on the retainer
type RetainerDrawAppliedEvent struct {
	shared.BaseDomainEvent
	DrawID     uuid.UUID       `json:"draw_id"`
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// NewRetainerDrawAppliedEvent creates a new RetainerDrawAppliedEvent
func NewRetainerDrawAppliedEvent(r *Retainer, d *Draw, now time.Time) *RetainerDrawAppliedEvent {
	return &RetainerDrawAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRetainerDrawApplied, aggregateTypeRetainer, r.ID, r.TenantID, now),
		DrawID:          d.ID,
		InvoiceID:       d.InvoiceID,
		Amount:          d.Amount,
		NewBalance:      d.BalanceAfter,
	}
}

// RetainerDepositedEvent is published when the balance is topped up
type RetainerDepositedEvent struct {
	shared.BaseDomainEvent
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// NewRetainerDepositedEvent creates a new RetainerDepositedEvent
func NewRetainerDepositedEvent(r *Retainer, oldBalance decimal.Decimal, now time.Time) *RetainerDepositedEvent {
	return &RetainerDepositedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRetainerDeposited, aggregateTypeRetainer, r.ID, r.TenantID, now),
		OldBalance:      oldBalance,
		NewBalance:      r.CurrentBalance,
	}
}
