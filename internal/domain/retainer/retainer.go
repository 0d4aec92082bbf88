package retainer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a retainer
type Status string

const (
	StatusActive   Status = "active"
	StatusDepleted Status = "depleted"
	StatusClosed   Status = "closed"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDepleted, StatusClosed:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// DrawPolicy decides what AuthorizeDraw does when the requested amount is not
// fully available.
type DrawPolicy string

const (
	// DrawPolicyClamp grants the largest feasible amount
	DrawPolicyClamp DrawPolicy = "clamp"
	// DrawPolicyReject fails with INSUFFICIENT_BALANCE instead
	DrawPolicyReject DrawPolicy = "reject"
)

// IsValid checks if the policy is a known value
func (p DrawPolicy) IsValid() bool {
	return p == DrawPolicyClamp || p == DrawPolicyReject
}

// Retainer is a client's prepaid balance that invoices draw against.
// CurrentBalance is never negative.
type Retainer struct {
	shared.TenantAggregateRoot
	ClientID       uuid.UUID
	CurrentBalance decimal.Decimal
	Status         Status
}

// NewRetainer opens a retainer for a client with an initial deposit
func NewRetainer(tenantID, clientID uuid.UUID, initialBalance decimal.Decimal, now time.Time) (*Retainer, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	initialBalance = valueobject.RoundCents(initialBalance)
	if initialBalance.IsNegative() {
		return nil, shared.NewValidationError("Initial balance cannot be negative")
	}

	r := &Retainer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		ClientID:            clientID,
		CurrentBalance:      initialBalance,
		Status:              StatusActive,
	}
	if initialBalance.IsZero() {
		r.Status = StatusDepleted
	}

	r.AddDomainEvent(NewRetainerCreatedEvent(r, now))
	return r, nil
}

// Authorization is the outcome of AuthorizeDraw
type Authorization struct {
	Requested decimal.Decimal
	Amount    decimal.Decimal
	// Clamped is true when Amount is less than Requested
	Clamped bool
}

// AuthorizeDraw computes how much of requested can be drawn against an invoice
// with the given subtotal: min(requested, subtotal, balance). Under
// DrawPolicyReject a shortfall is an error instead of a smaller grant.
//
// Authorization does not reserve anything. ApplyDraw checks the balance again.
func (r *Retainer) AuthorizeDraw(requested, subtotal decimal.Decimal, policy DrawPolicy) (Authorization, error) {
	requested = valueobject.RoundCents(requested)
	if requested.IsNegative() {
		return Authorization{}, shared.NewValidationError("Requested draw cannot be negative")
	}
	if r.Status == StatusClosed {
		return Authorization{}, shared.NewDomainError(shared.CodeValidation, "Retainer is closed")
	}

	feasible := valueobject.MinDecimal(requested, subtotal, r.CurrentBalance)
	if feasible.IsNegative() {
		feasible = decimal.Zero
	}
	auth := Authorization{
		Requested: requested,
		Amount:    feasible,
		Clamped:   feasible.LessThan(requested),
	}

	if auth.Clamped && policy == DrawPolicyReject {
		if requested.GreaterThan(subtotal) {
			return Authorization{}, shared.NewValidationError(fmt.Sprintf(
				"Requested draw %s exceeds invoice subtotal %s", requested.StringFixed(2), subtotal.StringFixed(2)))
		}
		return Authorization{}, shared.NewDomainError(shared.CodeInsufficientBalance, fmt.Sprintf(
			"Requested draw %s exceeds retainer balance %s", requested.StringFixed(2), r.CurrentBalance.StringFixed(2)))
	}
	return auth, nil
}

// ApplyDraw debits amount from the balance and returns the ledger record.
// The balance is checked here regardless of any earlier authorization.
func (r *Retainer) ApplyDraw(invoiceID uuid.UUID, amount decimal.Decimal, now time.Time) (*Draw, error) {
	amount = valueobject.RoundCents(amount)
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("Draw amount must be positive")
	}
	if r.Status == StatusClosed {
		return nil, shared.NewDomainError(shared.CodeValidation, "Retainer is closed")
	}
	if amount.GreaterThan(r.CurrentBalance) {
		return nil, shared.NewDomainError(shared.CodeInsufficientBalance, fmt.Sprintf(
			"Draw %s exceeds retainer balance %s", amount.StringFixed(2), r.CurrentBalance.StringFixed(2)))
	}

	before := r.CurrentBalance
	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	if r.CurrentBalance.IsZero() {
		r.Status = StatusDepleted
	}
	r.Touch(now)

	draw := newDraw(r, invoiceID, amount, before, now)
	r.AddDomainEvent(NewRetainerDrawAppliedEvent(r, draw, now))
	return draw, nil
}

// RebaseDraw aligns a draw and its pending event with the balance storage
// reported after the debit. It matters when another writer changed the balance
// between load and debit.
func (r *Retainer) RebaseDraw(d *Draw, balanceAfter decimal.Decimal) {
	d.BalanceAfter = balanceAfter
	d.BalanceBefore = balanceAfter.Add(d.Amount)
	for _, event := range r.GetDomainEvents() {
		if applied, ok := event.(*RetainerDrawAppliedEvent); ok && applied.DrawID == d.ID {
			applied.NewBalance = balanceAfter
		}
	}
}

// Deposit tops up the balance and reactivates a depleted retainer
func (r *Retainer) Deposit(amount decimal.Decimal, now time.Time) error {
	amount = valueobject.RoundCents(amount)
	if !amount.IsPositive() {
		return shared.NewValidationError("Deposit amount must be positive")
	}
	if r.Status == StatusClosed {
		return shared.NewDomainError(shared.CodeValidation, "Retainer is closed")
	}

	before := r.CurrentBalance
	r.CurrentBalance = r.CurrentBalance.Add(amount)
	r.Status = StatusActive
	r.Touch(now)

	r.AddDomainEvent(NewRetainerDepositedEvent(r, before, now))
	return nil
}

// Close stops further draws. The remaining balance is kept for refund bookkeeping.
func (r *Retainer) Close(now time.Time) error {
	if r.Status == StatusClosed {
		return shared.NewInvalidTransitionError(string(r.Status), string(StatusClosed))
	}
	r.Status = StatusClosed
	r.Touch(now)
	return nil
}

// CanDraw reports whether the retainer has anything to draw
func (r *Retainer) CanDraw() bool {
	return r.Status == StatusActive && r.CurrentBalance.IsPositive()
}
