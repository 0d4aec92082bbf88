package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceCreated          = "InvoiceCreated"
	EventTypeInvoiceStatusChanged    = "InvoiceStatusChanged"
	EventTypeInvoiceSent             = "InvoiceSent"
	EventTypeInvoicePaid             = "InvoicePaid"
	EventTypeInvoiceWrittenOff       = "InvoiceWrittenOff"
	EventTypeInvoiceLineItemsChanged = "InvoiceLineItemsChanged"
)

const aggregateTypeInvoice = "Invoice"

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Status        InvoiceStatus   `json:"status"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, now time.Time) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		Subtotal:        inv.Subtotal,
		Status:          inv.Status,
	}
}

// InvoiceStatusChangedEvent is raised on every status transition
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	From InvoiceStatus `json:"from"`
	To   InvoiceStatus `json:"to"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from InvoiceStatus, now time.Time) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		From:            from,
		To:              inv.Status,
	}
}

// InvoiceSentEvent is raised when the invoice goes out to the client
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TotalDue      decimal.Decimal `json:"total_due"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice, now time.Time) *InvoiceSentEvent {
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		InvoiceNumber:   inv.InvoiceNumber,
		TotalDue:        inv.TotalDue,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised when a payment is recorded
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	PaymentAmount *decimal.Decimal `json:"payment_amount,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, now time.Time) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		PaymentAmount:   inv.PaymentAmount,
		PaymentMethod:   inv.PaymentMethod,
	}
}

// InvoiceWrittenOffEvent is raised when an invoice is closed without recovery
type InvoiceWrittenOffEvent struct {
	shared.BaseDomainEvent
	WrittenOffAmount decimal.Decimal `json:"written_off_amount"`
}

// NewInvoiceWrittenOffEvent creates a new InvoiceWrittenOffEvent
func NewInvoiceWrittenOffEvent(inv *Invoice, amount decimal.Decimal, now time.Time) *InvoiceWrittenOffEvent {
	return &InvoiceWrittenOffEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceWrittenOff, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		WrittenOffAmount: amount,
	}
}

// InvoiceLineItemsChangedEvent is raised when line items are replaced
type InvoiceLineItemsChangedEvent struct {
	shared.BaseDomainEvent
	Subtotal decimal.Decimal `json:"subtotal"`
	TotalDue decimal.Decimal `json:"total_due"`
}

// NewInvoiceLineItemsChangedEvent creates a new InvoiceLineItemsChangedEvent
func NewInvoiceLineItemsChangedEvent(inv *Invoice, now time.Time) *InvoiceLineItemsChangedEvent {
	return &InvoiceLineItemsChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceLineItemsChanged, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		Subtotal:        inv.Subtotal,
		TotalDue:        inv.TotalDue,
	}
}
