package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentTerms controls how the due date is derived from the invoice date
type PaymentTerms string

const (
	TermsDueOnReceipt PaymentTerms = "due_on_receipt"
	TermsNet15        PaymentTerms = "net_15"
	TermsNet30        PaymentTerms = "net_30"
	TermsNet45        PaymentTerms = "net_45"
	TermsNet60        PaymentTerms = "net_60"
)

// Days returns the number of days until payment is due
func (t PaymentTerms) Days() int {
	switch t {
	case TermsNet15:
		return 15
	case TermsNet30:
		return 30
	case TermsNet45:
		return 45
	case TermsNet60:
		return 60
	}
	return 0
}

// IsValid checks the terms value
func (t PaymentTerms) IsValid() bool {
	switch t {
	case TermsDueOnReceipt, TermsNet15, TermsNet30, TermsNet45, TermsNet60:
		return true
	}
	return false
}

// Invoice is the aggregate root for a client invoice
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber   string
	ClientID        uuid.UUID
	ClientName      string
	ProjectID       uuid.UUID
	ProjectName     string
	LineItems       LineItems
	Subtotal        decimal.Decimal
	RetainerApplied decimal.Decimal
	TotalDue        decimal.Decimal
	Status          InvoiceStatus
	PaymentTerms    PaymentTerms
	InvoiceDate     time.Time
	DueDate         *time.Time
	SentAt          *time.Time
	PaidAt          *time.Time
	PaymentAmount   *decimal.Decimal
	PaymentMethod   string
	HoldReason      string
}

// NewInvoiceParams carries the inputs for NewInvoice
type NewInvoiceParams struct {
	TenantID      uuid.UUID
	InvoiceNumber string
	ClientID      uuid.UUID
	ClientName    string
	ProjectID     uuid.UUID
	ProjectName   string
	LineItems     []LineItem
	PaymentTerms  PaymentTerms
	InvoiceDate   time.Time
	DueDate       *time.Time
	// InitialStatus must be draft or ready_to_send; empty means draft
	InitialStatus InvoiceStatus
}

// NewInvoice builds an invoice from its line items. Blank rows are dropped and
// at least one billable row is required.
func NewInvoice(p NewInvoiceParams, now time.Time) (*Invoice, error) {
	if p.InvoiceNumber == "" {
		return nil, shared.NewValidationError("Invoice number cannot be empty")
	}
	if p.ClientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	status := p.InitialStatus
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusReadyToSend {
		return nil, shared.NewValidationError(fmt.Sprintf("Invoice cannot be created in %s status", status))
	}
	terms := p.PaymentTerms
	if terms == "" {
		terms = TermsNet30
	}
	if !terms.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Unknown payment terms %q", terms))
	}

	items, err := validateLineItems(p.LineItems)
	if err != nil {
		return nil, err
	}

	invoiceDate := p.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = startOfDay(now)
	}
	dueDate := p.DueDate
	if dueDate == nil {
		d := invoiceDate.AddDate(0, 0, terms.Days())
		dueDate = &d
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID, now),
		InvoiceNumber:       p.InvoiceNumber,
		ClientID:            p.ClientID,
		ClientName:          p.ClientName,
		ProjectID:           p.ProjectID,
		ProjectName:         p.ProjectName,
		LineItems:           items,
		RetainerApplied:     decimal.Zero,
		Status:              status,
		PaymentTerms:        terms,
		InvoiceDate:         invoiceDate,
		DueDate:             dueDate,
	}
	inv.recalculate()

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv, now))
	return inv, nil
}

func validateLineItems(items []LineItem) (LineItems, error) {
	kept := billable(items)
	if len(kept) == 0 {
		return nil, shared.NewValidationError("Invoice needs at least one line item with a description and a non-zero amount")
	}
	if ComputeSubtotal(kept).IsNegative() {
		return nil, shared.NewValidationError("Invoice subtotal cannot be negative")
	}
	return kept, nil
}

// recalculate keeps Subtotal and TotalDue consistent with the line items,
// clamping RetainerApplied when the subtotal shrank below it.
func (inv *Invoice) recalculate() {
	inv.Subtotal = ComputeSubtotal(inv.LineItems)
	if inv.RetainerApplied.GreaterThan(inv.Subtotal) {
		inv.RetainerApplied = inv.Subtotal
	}
	inv.TotalDue = ComputeTotalDue(inv.Subtotal, inv.RetainerApplied)
}

// ApplyRetainerCredit records the amount drawn from the client's retainer.
// The amount must already be authorized against the retainer balance.
func (inv *Invoice) ApplyRetainerCredit(amount decimal.Decimal, now time.Time) error {
	if !inv.Status.IsEditable() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot apply retainer credit to invoice in %s status", inv.Status))
	}
	amount = valueobject.RoundCents(amount)
	if amount.IsNegative() {
		return shared.NewValidationError("Retainer credit cannot be negative")
	}
	if amount.GreaterThan(inv.Subtotal) {
		return shared.NewValidationError(fmt.Sprintf("Retainer credit %s exceeds subtotal %s",
			amount.StringFixed(2), inv.Subtotal.StringFixed(2)))
	}
	inv.RetainerApplied = amount
	inv.TotalDue = ComputeTotalDue(inv.Subtotal, inv.RetainerApplied)
	inv.touch(now)
	return nil
}

// ReplaceLineItems swaps the line items while the invoice is in an editing
// state and recomputes subtotal and total.
func (inv *Invoice) ReplaceLineItems(items []LineItem, now time.Time) error {
	if !inv.Status.IsEditable() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Line items are locked once an invoice is %s", inv.Status))
	}
	return inv.replaceLineItems(items, now)
}

// EditInPlace is the explicit correction flow for sent or overdue invoices.
// Status and timestamps are untouched; totals are recomputed.
func (inv *Invoice) EditInPlace(items []LineItem, now time.Time) error {
	if !inv.Status.IsCollectible() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot edit invoice in place while %s", inv.Status))
	}
	return inv.replaceLineItems(items, now)
}

func (inv *Invoice) replaceLineItems(items []LineItem, now time.Time) error {
	kept, err := validateLineItems(items)
	if err != nil {
		return err
	}
	inv.LineItems = kept
	inv.recalculate()
	inv.touch(now)
	inv.AddDomainEvent(NewInvoiceLineItemsChangedEvent(inv, now))
	return nil
}

// SetDueDate changes the due date on a non-terminal invoice
func (inv *Invoice) SetDueDate(dueDate *time.Time, now time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Cannot modify due date for invoice in terminal state")
	}
	inv.DueDate = dueDate
	inv.touch(now)
	return nil
}

// transitionTo moves the invoice to target or fails without touching any field
func (inv *Invoice) transitionTo(target InvoiceStatus, now time.Time) error {
	if !inv.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError(inv.Status.String(), target.String())
	}
	from := inv.Status
	inv.Status = target
	inv.touch(now)
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, now))
	return nil
}

// MarkReady moves a draft or reviewed invoice to ready_to_send
func (inv *Invoice) MarkReady(now time.Time) error {
	return inv.transitionTo(StatusReadyToSend, now)
}

// MarkNeedsReview flags the invoice for review before sending
func (inv *Invoice) MarkNeedsReview(now time.Time) error {
	return inv.transitionTo(StatusNeedsReview, now)
}

// ReturnToDraft moves an unsent invoice back to draft
func (inv *Invoice) ReturnToDraft(now time.Time) error {
	return inv.transitionTo(StatusDraft, now)
}

// Send records that the invoice went out to the client
func (inv *Invoice) Send(now time.Time) error {
	if err := inv.transitionTo(StatusSent, now); err != nil {
		return err
	}
	sentAt := now
	inv.SentAt = &sentAt
	inv.AddDomainEvent(NewInvoiceSentEvent(inv, now))
	return nil
}

// MarkOverdue persists the overdue status once the due date has passed
func (inv *Invoice) MarkOverdue(now time.Time) error {
	if inv.Status == StatusSent && !inv.IsOverdueAt(now) {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Invoice is not past its due date")
	}
	return inv.transitionTo(StatusOverdue, now)
}

// RecordPayment marks a sent or overdue invoice as paid. amount and method are optional.
func (inv *Invoice) RecordPayment(amount *decimal.Decimal, method string, now time.Time) error {
	if amount != nil {
		if !amount.IsPositive() {
			return shared.NewValidationError("Payment amount must be positive")
		}
		rounded := valueobject.RoundCents(*amount)
		amount = &rounded
	}
	if err := inv.transitionTo(StatusPaid, now); err != nil {
		return err
	}
	paidAt := now
	inv.PaidAt = &paidAt
	inv.PaymentAmount = amount
	inv.PaymentMethod = strings.TrimSpace(method)
	inv.AddDomainEvent(NewInvoicePaidEvent(inv, now))
	return nil
}

// WriteOff closes the invoice as a zero-recovery payment. It returns the
// amount that was written off.
func (inv *Invoice) WriteOff(now time.Time) (decimal.Decimal, error) {
	writtenOff := inv.TotalDue
	if err := inv.transitionTo(StatusPaid, now); err != nil {
		return decimal.Zero, err
	}
	paidAt := now
	inv.PaidAt = &paidAt
	inv.PaymentAmount = nil
	inv.PaymentMethod = ""
	inv.AddDomainEvent(NewInvoiceWrittenOffEvent(inv, writtenOff, now))
	return writtenOff, nil
}

// PlaceLegalHold escalates the invoice out of the normal collections flow
func (inv *Invoice) PlaceLegalHold(reason string, now time.Time) error {
	if err := inv.transitionTo(StatusLegalHold, now); err != nil {
		return err
	}
	inv.HoldReason = reason
	return nil
}

// IsOverdueAt reports whether the invoice is sent, unpaid and past its due date
func (inv *Invoice) IsOverdueAt(now time.Time) bool {
	if !inv.Status.IsCollectible() {
		return false
	}
	if inv.DueDate == nil || inv.PaidAt != nil {
		return false
	}
	return now.After(*inv.DueDate)
}

// EffectiveStatus is the status as seen by read paths: a persisted "sent"
// invoice past its due date reads as overdue.
func (inv *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.Status == StatusSent && inv.IsOverdueAt(now) {
		return StatusOverdue
	}
	return inv.Status
}

// NeedsOverdueReconciliation reports whether the persisted status lags the derived one
func (inv *Invoice) NeedsOverdueReconciliation(now time.Time) bool {
	return inv.EffectiveStatus(now) != inv.Status
}

// ReconcileOverdue flips a persisted "sent" invoice that is past due to
// overdue. It reports whether the status changed.
func (inv *Invoice) ReconcileOverdue(now time.Time) bool {
	if !inv.NeedsOverdueReconciliation(now) {
		return false
	}
	return inv.transitionTo(StatusOverdue, now) == nil
}

// AgingReference is the date aging is measured from: the due date, or the
// creation time when no due date is set.
func (inv *Invoice) AgingReference() time.Time {
	if inv.DueDate != nil {
		return *inv.DueDate
	}
	return inv.CreatedAt
}

// TotalDueMoney returns TotalDue as Money
func (inv *Invoice) TotalDueMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.TotalDue)
}

// touch stamps the change; the version is bumped by the repository on a
// successful compare-and-swap write.
func (inv *Invoice) touch(now time.Time) {
	inv.Touch(now)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
