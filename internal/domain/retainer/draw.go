package retainer

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Draw is an immutable record of one debit against a retainer.
// Corrections are made with new records, never by editing.
type Draw struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	RetainerID    uuid.UUID
	InvoiceID     uuid.UUID
	Amount        decimal.Decimal // always positive
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

func newDraw(r *Retainer, invoiceID uuid.UUID, amount, before decimal.Decimal, now time.Time) *Draw {
	return &Draw{
		BaseEntity:    shared.NewBaseEntity(now),
		TenantID:      r.TenantID,
		RetainerID:    r.ID,
		InvoiceID:     invoiceID,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  r.CurrentBalance,
	}
}
