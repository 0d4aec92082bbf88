package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/shopspring/decimal"
)

// LineItemInput is one submitted row. Quantity and Rate together produce the
// amount; Amount alone makes a fixed-fee row.
type LineItemInput struct {
	Description string
	Quantity    *decimal.Decimal
	Rate        *decimal.Decimal
	Amount      *decimal.Decimal
}

// ToLineItems converts submitted rows to domain line items. Rows with neither
// quantity/rate nor amount become zero-amount rows and are dropped as blank.
func ToLineItems(inputs []LineItemInput) []invoicing.LineItem {
	items := make([]invoicing.LineItem, 0, len(inputs))
	for _, in := range inputs {
		switch {
		case in.Quantity != nil || in.Rate != nil:
			item := invoicing.LineItem{Description: in.Description}
			if in.Quantity != nil {
				item.SetQuantity(*in.Quantity)
			}
			if in.Rate != nil {
				item.SetRate(*in.Rate)
			}
			items = append(items, item)
		case in.Amount != nil:
			items = append(items, invoicing.NewFixedFeeLineItem(in.Description, *in.Amount))
		default:
			items = append(items, invoicing.LineItem{Description: in.Description})
		}
	}
	return items
}

// CreateInvoiceRequest holds the inputs of CreateInvoice
type CreateInvoiceRequest struct {
	ClientID      uuid.UUID
	ClientName    string
	ProjectID     uuid.UUID
	ProjectName   string
	LineItems     []LineItemInput
	PaymentTerms  invoicing.PaymentTerms
	InvoiceDate   *time.Time
	DueDate       *time.Time
	InitialStatus invoicing.InvoiceStatus

	// RetainerAmount requests a draw from the client's retainer. RetainerID
	// selects the retainer; without it the client's open retainer is used.
	RetainerAmount *decimal.Decimal
	RetainerID     *uuid.UUID
	Actor          string
}

// CreateInvoiceResult reports the created invoice and the outcome of the
// optional retainer draw. A non-nil DrawError means the invoice exists but no
// credit was applied.
type CreateInvoiceResult struct {
	Invoice       *invoicing.Invoice
	Draw          *retainer.Draw
	Authorization *retainer.Authorization
	DrawError     error
}

// InvoiceView is an invoice as seen by read paths at a point in time
type InvoiceView struct {
	Invoice         *invoicing.Invoice
	EffectiveStatus invoicing.InvoiceStatus
	DaysOverdue     int
	Tier            invoicing.AgingTier
}

// NewInvoiceView derives the read-side status and aging of inv as of now
func NewInvoiceView(inv *invoicing.Invoice, now time.Time) InvoiceView {
	tier, days := invoicing.TierOf(inv, now)
	if !inv.IsOverdueAt(now) {
		days = 0
	}
	return InvoiceView{
		Invoice:         inv,
		EffectiveStatus: inv.EffectiveStatus(now),
		DaysOverdue:     days,
		Tier:            tier,
	}
}

// RecordPaymentRequest holds the optional payment details
type RecordPaymentRequest struct {
	Amount *decimal.Decimal
	Method string
	Actor  string
}
