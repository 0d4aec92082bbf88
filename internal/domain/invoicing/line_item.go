package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one billable row on an invoice.
// Amount equals Quantity*Rate whenever either of them was last set; a fixed-fee
// item carries only Amount.
type LineItem struct {
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
}

// NewLineItem creates a quantity x rate line item
func NewLineItem(description string, quantity, rate decimal.Decimal) LineItem {
	item := LineItem{
		Description: description,
		Quantity:    &quantity,
		Rate:        &rate,
	}
	item.Amount = ComputeAmount(item)
	return item
}

// NewFixedFeeLineItem creates a line item whose amount is set directly
func NewFixedFeeLineItem(description string, amount decimal.Decimal) LineItem {
	return LineItem{
		Description: description,
		Amount:      valueobject.RoundCents(amount),
	}
}

// SetQuantity updates the quantity and recomputes Amount, overwriting any
// independently set value.
func (li *LineItem) SetQuantity(quantity decimal.Decimal) {
	li.Quantity = &quantity
	li.Amount = ComputeAmount(*li)
}

// SetRate updates the rate and recomputes Amount
func (li *LineItem) SetRate(rate decimal.Decimal) {
	li.Rate = &rate
	li.Amount = ComputeAmount(*li)
}

// SetDescription changes the description only; Amount is untouched
func (li *LineItem) SetDescription(description string) {
	li.Description = description
}

// IsBillable reports whether the row carries a description and a non-zero amount.
// Blank rows left over from editing are not billable.
func (li LineItem) IsBillable() bool {
	return strings.TrimSpace(li.Description) != "" && !li.Amount.IsZero()
}

// ComputeAmount returns quantity * rate, rounded to cents. An unset quantity or
// rate counts as zero.
func ComputeAmount(item LineItem) decimal.Decimal {
	quantity := decimal.Zero
	if item.Quantity != nil {
		quantity = *item.Quantity
	}
	rate := decimal.Zero
	if item.Rate != nil {
		rate = *item.Rate
	}
	return valueobject.RoundCents(quantity.Mul(rate))
}

// ComputeSubtotal sums the amounts of all items
func ComputeSubtotal(items []LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount)
	}
	return valueobject.RoundCents(subtotal)
}

// ComputeTotalDue returns subtotal - retainerApplied. The retainer amount is
// expected to be clamped already; no clamping happens here.
func ComputeTotalDue(subtotal, retainerApplied decimal.Decimal) decimal.Decimal {
	return valueobject.RoundCents(subtotal.Sub(retainerApplied))
}

// LineItems is a slice of LineItem stored as a JSON column
type LineItems []LineItem

// Value implements driver.Valuer
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// billable returns only the billable rows
func billable(items []LineItem) LineItems {
	out := make(LineItems, 0, len(items))
	for _, item := range items {
		if item.IsBillable() {
			out = append(out, item)
		}
	}
	return out
}
